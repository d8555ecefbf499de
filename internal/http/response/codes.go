package response

// 业务状态码，除 CodeOK 外与 HTTP 状态码取值一致
const (
	CodeOK = 0

	CodeBadRequest      = 400
	CodeUnauthorized    = 401
	CodeForbidden       = 403
	CodeNotFound        = 404
	CodeConflict        = 409
	CodeTooManyRequests = 429

	CodeInternal = 500
)
