package repository

import "errors"

var (
	ErrUserNotFound    = errors.New("пользователь не найден")
	ErrOrderNotFound   = errors.New("заказ не найден")
	ErrRequestNotFound = errors.New("заявка не найдена")
	// ErrCorruptRecord — блоб в хранилище не декодируется; молча
	// подменять его дефолтом нельзя.
	ErrCorruptRecord = errors.New("повреждённая запись в хранилище")
)
