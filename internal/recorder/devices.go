package recorder

import (
	"bufio"
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/codebuildervaibhav/memoant/internal/apperr"
)

const listDevicesTimeout = 10 * time.Second

var deviceLine = regexp.MustCompile(`\[(\d+)]\s+(.+)$`)

// Device is one avfoundation capture device
type Device struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// DeviceList groups capture devices by kind
type DeviceList struct {
	Video []Device `json:"video"`
	Audio []Device `json:"audio"`
}

// ParseDeviceList parses the stderr of
// `ffmpeg -f avfoundation -list_devices true -i ""`.
func ParseDeviceList(output string) DeviceList {
	list := DeviceList{Video: []Device{}, Audio: []Device{}}
	section := ""

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.Contains(line, "AVFoundation video devices:"):
			section = "video"
			continue
		case strings.Contains(line, "AVFoundation audio devices:"):
			section = "audio"
			continue
		}
		if section == "" {
			continue
		}

		m := deviceLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		d := Device{Index: idx, Name: strings.TrimSpace(m[2])}
		if section == "video" {
			list.Video = append(list.Video, d)
		} else {
			list.Audio = append(list.Audio, d)
		}
	}
	return list
}

// ListDevices asks ffmpeg for the avfoundation device list
func ListDevices(ctx context.Context, runner Runner, ffmpeg string) (DeviceList, error) {
	ctx, cancel := context.WithTimeout(ctx, listDevicesTimeout)
	defer cancel()

	// ffmpeg exits non-zero after listing, so only a missing binary or a
	// timeout is a failure here.
	_, stderr, err := runner.Output(ctx, ffmpeg, "-f", "avfoundation", "-list_devices", "true", "-i", "")
	if errors.Is(err, exec.ErrNotFound) {
		return DeviceList{}, apperr.New(apperr.CodePrecondition, "devices", "ffmpeg not found. Install with: brew install ffmpeg")
	}
	if ctx.Err() == context.DeadlineExceeded {
		return DeviceList{}, apperr.New(apperr.CodeExternal, "devices", "ffmpeg device listing timed out")
	}
	return ParseDeviceList(stderr), nil
}

// ResolveAudioDevice maps a device name, index or "default" to an
// avfoundation input string such as ":3".
func ResolveAudioDevice(ctx context.Context, runner Runner, ffmpeg, device string) (string, error) {
	if device == "" || device == "default" {
		return ":0", nil
	}
	if isDigits(device) {
		return ":" + device, nil
	}

	list, err := ListDevices(ctx, runner, ffmpeg)
	if err != nil {
		return "", err
	}
	needle := strings.ToLower(device)
	names := make([]string, 0, len(list.Audio))
	for _, d := range list.Audio {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return ":" + strconv.Itoa(d.Index), nil
		}
		names = append(names, d.Name)
	}
	return "", apperr.Newf(apperr.CodeInvalidArgument, "devices",
		"audio device not found: %q. Available: [%s]", device, strings.Join(names, ", "))
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
