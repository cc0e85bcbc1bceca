package models

// Pagination is the paging block of the backend list responses.
type Pagination struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
}

// Page is one page of a backend collection.
type Page[T any] struct {
	Items      []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// BaseResponse is the success envelope of the console API.
type BaseResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the error envelope of the console API.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Msg    string              `json:"message"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// MetaResponse carries the paging block of a console list response.
type MetaResponse struct {
	CurrentPage int64 `json:"current_page"`
	LastPage    int64 `json:"last_page"`
	PerPage     int64 `json:"per_page"`
	Total       int64 `json:"total"`
}

// BasePaginationResponse is the list envelope of the console API.
type BasePaginationResponse struct {
	Data interface{}  `json:"data"`
	Meta MetaResponse `json:"meta"`
}
