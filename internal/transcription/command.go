package transcription

import (
	"github.com/kballard/go-shellquote"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
)

// SplitCommand parses a configured command line with shell quoting rules,
// so interpreter paths with spaces and quoted arguments survive.
func SplitCommand(command string) ([]string, error) {
	fields, err := shellquote.Split(command)
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInvalidArgument, "command", "cannot parse command line "+command)
	}
	if len(fields) == 0 {
		return nil, apperr.New(apperr.CodePrecondition, "command", "no command configured")
	}
	return fields, nil
}
