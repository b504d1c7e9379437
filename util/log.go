package util

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/coreos/go-systemd/v22/journal"
)

// SetupLogging configures the default logger from the app config. When
// journald is requested and reachable, log lines go to the journal instead
// of stderr.
func SetupLogging(conf *AppConfig) {
	var out io.Writer = os.Stderr
	if conf.Conf.WithJournald {
		if journal.Enabled() {
			out = journalWriter{}
		} else {
			log.Warn("journald requested but not available, logging to stderr")
		}
	}

	logger := log.NewWithOptions(out, log.Options{
		ReportTimestamp: out == os.Stderr,
		Prefix:          Name,
	})

	if lvl, err := log.ParseLevel(conf.Conf.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else if conf.Conf.LogLevel != "" {
		logger.Warn("unknown log level, using info", "level", conf.Conf.LogLevel)
	}

	log.SetDefault(logger)
}

type journalWriter struct{}

func (journalWriter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	if err := journal.Send(msg, priorityOf(msg), map[string]string{"SYSLOG_IDENTIFIER": Name}); err != nil {
		return 0, err
	}
	return len(p), nil
}

func priorityOf(line string) journal.Priority {
	switch {
	case strings.Contains(line, "ERRO"), strings.Contains(line, "FATA"):
		return journal.PriErr
	case strings.Contains(line, "WARN"):
		return journal.PriWarning
	case strings.Contains(line, "DEBU"):
		return journal.PriDebug
	default:
		return journal.PriInfo
	}
}
