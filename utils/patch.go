package utils

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// PatchColumns collects the set pointer fields of a patch DTO, keyed by
// column. The column is the `column` tag when present, else the json name;
// "-" in either skips the field.
func PatchColumns(dto any) map[string]any {
	out := make(map[string]any)
	v := reflect.ValueOf(dto)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return out
	}
	s := v.Elem()
	t := s.Type()
	for i := 0; i < t.NumField(); i++ {
		fv := s.Field(i)
		if fv.Kind() != reflect.Ptr || fv.IsNil() {
			continue
		}
		if col := columnOf(t.Field(i)); col != "" {
			out[col] = fv.Elem().Interface()
		}
	}
	return out
}

func columnOf(sf reflect.StructField) string {
	if col, ok := sf.Tag.Lookup("column"); ok {
		if col == "-" {
			return ""
		}
		return col
	}
	name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// ParseID parses a positive numeric path parameter.
func ParseID(s string) (uint, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(v), nil
}
