package dto

// Response 统一响应体，HTTP 4xx/5xx 时 code 与状态码一致
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}
