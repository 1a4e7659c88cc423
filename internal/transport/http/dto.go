package http

type CreateRoomRequest struct {
	Title string `json:"title"`
}

type SubmitQuestionRequest struct {
	Content string `json:"content"`
}

type IDResponse struct {
	ID string `json:"id"`
}

type LikeResponse struct {
	LikeID string `json:"likeId"`
}

type AdminStatusResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
