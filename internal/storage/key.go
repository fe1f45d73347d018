// Package storage keeps uploaded photos in an object store.
package storage

import (
	"strconv"
	"strings"
	"time"
)

// PhotoKey builds the object key {userID}/{epochMillis}.{ext}, taking the
// extension from the uploaded file name.
func PhotoKey(userID, filename string, now time.Time) string {
	ext := "bin"
	if i := strings.LastIndex(filename, "."); i >= 0 && i < len(filename)-1 {
		ext = strings.ToLower(filename[i+1:])
	}
	return userID + "/" + strconv.FormatInt(now.UnixMilli(), 10) + "." + ext
}
