package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

const cursorPrefix = "job|"

// JobCursor marks the last job id returned by a page
type JobCursor struct {
	AfterID int
}

func DecodeJobCursor(cursorStr string) (*JobCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	raw, ok := strings.CutPrefix(string(decoded), cursorPrefix)
	if !ok {
		return nil, fmt.Errorf("invalid cursor format")
	}

	afterID, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid job id in cursor: %w", err)
	}

	return &JobCursor{AfterID: afterID}, nil
}

func EncodeJobCursor(cursor *JobCursor) string {
	cs := cursorPrefix + strconv.Itoa(cursor.AfterID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
