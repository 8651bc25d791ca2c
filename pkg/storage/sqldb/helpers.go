package sqldb

import (
	"encoding/json"
	"time"
)

func jsonString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// jsonList decodes a JSON array column, leaving dest nil when it is empty.
func jsonList[T any](data string, dest *[]T) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return err
	}
	if len(*dest) == 0 {
		*dest = nil
	}

	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}

	return s
}
