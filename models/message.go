package models

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
	Status  int         `json:"status"`
}

func NewMessageResponse(statusCode int, message string) Response {
	return Response{
		Success: statusCode < 400,
		Message: message,
		Status:  statusCode,
	}
}

func NewValidationResponse(statusCode int, message string, errors interface{}) Response {
	return Response{
		Success: false,
		Message: message,
		Data:    errors,
		Status:  statusCode,
	}
}

func NewDataResponse(statusCode int, message string, data interface{}) Response {
	return Response{
		Success: statusCode < 400,
		Message: message,
		Data:    data,
		Status:  statusCode,
	}
}
