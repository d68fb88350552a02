package bridge

import "encoding/json"

// Request is one inbound command envelope. Correlation is purely by
// id; the bridge holds no cross-request state beyond the single
// pending dispatch.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type Response struct {
	ID     string         `json:"id"`
	Result any            `json:"result,omitempty"`
	Error  *ResponseError `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	CodeUnknownMethod = -32601
	CodeBadParams     = -32602
	CodeHandlerError  = -32000
)

func errorResponse(id string, code int, message string) Response {
	return Response{
		ID: id,
		Error: &ResponseError{
			Code:    code,
			Message: message,
		},
	}
}
