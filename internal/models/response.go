package models

import (
	"net/http"
	"time"
)

// ResponseVersion is bumped whenever the shape of Data changes incompatibly.
const ResponseVersion = 1

// ResponseModel Base response structure that can be reused
type ResponseModel struct {
	Code        int         `json:"code"`
	CurrentTime int64       `json:"currentTime"`
	Data        interface{} `json:"data"`
	Text        string      `json:"text"`
	Version     int         `json:"version"`
}

func NewResponse(code int, data interface{}, text string) ResponseModel {
	return ResponseModel{
		Code:        code,
		CurrentTime: ResponseCurrentTime(),
		Data:        data,
		Text:        text,
		Version:     ResponseVersion,
	}
}

func NewOKResponse(data interface{}) ResponseModel {
	return NewResponse(http.StatusOK, data, "OK")
}

// NewErrorResponse carries no data, only the status and a human readable reason.
func NewErrorResponse(code int, text string) ResponseModel {
	return NewResponse(code, nil, text)
}

// ResponseCurrentTime is the server clock in epoch milliseconds.
func ResponseCurrentTime() int64 {
	return time.Now().UnixMilli()
}
