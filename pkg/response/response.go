package response

import (
	"net/http"

	"github.com/Venterweb3-wq/zodiak/pkg/apperr"

	"github.com/gin-gonic/gin"
)

const (
	CodeSuccess      = 0
	CodeParamError   = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeServerError  = 500
)

// 业务错误码
const (
	CodeInsufficientFunds    = 1001
	CodeStateConflict        = 1002
	CodeDuplicateIdentity    = 1003
	CodeGatewayUnavailable   = 1004
	CodeConfigurationMissing = 1005
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, Response{
		Code:    code,
		Message: message,
	})
}

func ParamError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, CodeParamError, message)
}

func ServerError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, CodeServerError, message)
}

// FromError 按错误类别返回对应的 HTTP 状态和业务码
func FromError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		Error(c, http.StatusBadRequest, CodeParamError, err.Error())
	case apperr.KindInsufficientFunds:
		Error(c, http.StatusBadRequest, CodeInsufficientFunds, err.Error())
	case apperr.KindStateConflict:
		Error(c, http.StatusConflict, CodeStateConflict, err.Error())
	case apperr.KindDuplicateIdentity:
		Error(c, http.StatusConflict, CodeDuplicateIdentity, err.Error())
	case apperr.KindGatewayUnavailable:
		Error(c, http.StatusServiceUnavailable, CodeGatewayUnavailable, err.Error())
	case apperr.KindConfigurationMissing:
		Error(c, http.StatusServiceUnavailable, CodeConfigurationMissing, err.Error())
	case apperr.KindNotFound:
		Error(c, http.StatusNotFound, CodeNotFound, err.Error())
	default:
		ServerError(c, err.Error())
	}
}
