package ws

import "github.com/cwrk-planet/qaroom/internal/domain"

// Типы событий от сервера
const (
	TypeRoomState     = "room_state"     // полный RoomView после каждого изменения
	TypeRoomNotFound  = "room_not_found" // комнаты нет (или её id невалиден)
	TypeRoomClosed    = "room_closed"    // комната закрылась, шлётся один раз
	TypeIdentity      = "identity"       // текущий зритель после identify/sign_out
	TypeDeletePending = "delete_pending" // вопрос, ждущий подтверждения удаления
	TypeError         = "error"
	TypePong          = "pong"
)

// Типы событий от клиента
const (
	TypeIdentify      = "identify"
	TypeSignOut       = "sign_out"
	TypeSelectDelete  = "select_delete"
	TypeConfirmDelete = "confirm_delete"
	TypeCancelDelete  = "cancel_delete"
	TypeToggleLike    = "toggle_like"
	TypePing          = "ping"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type RoomRefPayload struct {
	RoomID domain.RoomID `json:"roomId"`
}

type IdentityPayload struct {
	Viewer *domain.Viewer `json:"viewer"`
}

type IdentifyPayload struct {
	AccessToken string `json:"access_token"`
}

type QuestionPayload struct {
	QuestionID domain.QuestionID `json:"questionId"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
