package logging

import (
	"path/filepath"
	"time"

	"github.com/fpsframework/firearm/internal/util"
)

const logStamp = "20060102_150405"

// LogFilePath returns logsDir/<app>.<start>.log. The app name is made safe
// for use as a file name.
func LogFilePath(logsDir, appName string, sessionStart time.Time) string {
	return filepath.Join(logsDir, util.SanitizeFileName(appName)+"."+sessionStart.Format(logStamp)+".log")
}
