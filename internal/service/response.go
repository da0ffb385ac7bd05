package service

import (
	"errors"
	"fmt"
	"net/http"

	"marketplace/internal/repository"
)

// Code вид результата операции сервиса
type Code string

const (
	CodeSuccess           Code = "Success"
	CodeConflict          Code = "Conflict"
	CodeNotFound          Code = "NotFound"
	CodeBadRequest        Code = "BadRequest"
	CodeInsufficientStock Code = "InsufficientStock"
	CodeInternalError     Code = "InternalError"
)

// HTTPStatus соответствие кода транспортному статусу
func (c Code) HTTPStatus() int {
	switch c {
	case CodeSuccess:
		return http.StatusOK
	case CodeConflict:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest, CodeInsufficientStock:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Response результат любой операции MarketPlaceService: код, сообщение и данные при успехе
type Response[T any] struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func (r Response[T]) OK() bool { return r.Code == CodeSuccess }

// Сообщения успешных операций
const (
	MsgMarketAdded             = "Market successfully added."
	MsgMarketFound             = "Market successfully found."
	MsgMarketsListed           = "Markets successfully listed."
	MsgProductAdded            = "Product successfully added."
	MsgProductFound            = "Product successfully found."
	MsgProductAddedToMarket    = "Product successfully added to the market."
	MsgCheapestMarketFound     = "Cheapest market found for the product."
	MsgAvailableProducts       = "Available products retrieved successfully."
	MsgPurchaseCompleted       = "Purchase completed successfully."
	MsgBestMarketForBatchFound = "Best market found for batch purchase."
	MsgInternalError           = "Internal error."
)

var (
	ErrInvalidNumber   = errors.New("invalid number")
	ErrInvalidMarketID = errors.New("invalid market id")
	ErrProductExists   = errors.New("product already exists")
)

// opError несёт читаемое сообщение и вид ошибки для errors.Is
type opError struct {
	kind error
	msg  string
}

func (e *opError) Error() string { return e.msg }
func (e *opError) Unwrap() error { return e.kind }

func fail(kind error, format string, args ...any) error {
	return &opError{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func codeOf(err error) Code {
	switch {
	case errors.Is(err, ErrProductExists), errors.Is(err, repository.ErrAlreadyExists):
		return CodeConflict
	case errors.Is(err, repository.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrInvalidNumber), errors.Is(err, ErrInvalidMarketID), errors.Is(err, repository.ErrAmountOverflow):
		return CodeBadRequest
	case errors.Is(err, repository.ErrInsufficientStock), errors.Is(err, repository.ErrNegativeAmount):
		return CodeInsufficientStock
	default:
		return CodeInternalError
	}
}
