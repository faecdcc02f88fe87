package service

import (
	"strconv"

	bizerr "StillStudying/pkg/errors"
)

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ParseID 解析对外暴露的数字 ID 字符串
func ParseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, bizerr.ValidationFailed
	}
	return id, nil
}
