package main

import (
	"strconv"

	"contentfactory/internal/textutil"
)

func yesNo(value bool) string {
	return textutil.Ternary(value, "yes", "no")
}

func postID(id int64) string {
	if id == 0 {
		return "-"
	}
	return strconv.FormatInt(id, 10)
}
