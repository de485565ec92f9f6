package sink

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrMalformedMessage indicates a message missing a field the clean
// projection requires. Such messages are dropped; the stream continues.
var ErrMalformedMessage = errors.New("malformed message")

// CleanMessage is the reduced tweet shape produced in clean mode.
type CleanMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Time     int64  `json:"time"`
}

// Clean projects a raw stream message to a CleanMessage, stamping it with
// the capture instant.
func Clean(raw json.RawMessage, now time.Time) (CleanMessage, error) {
	var tweet struct {
		Text *string `json:"text"`
		User *struct {
			Name                 *string `json:"name"`
			ScreenName           *string `json:"screen_name"`
			ProfileImageURLHTTPS *string `json:"profile_image_url_https"`
		} `json:"user"`
	}
	if err := json.Unmarshal(raw, &tweet); err != nil {
		return CleanMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	switch {
	case tweet.Text == nil:
		return CleanMessage{}, fmt.Errorf("%w: missing text", ErrMalformedMessage)
	case tweet.User == nil:
		return CleanMessage{}, fmt.Errorf("%w: missing user", ErrMalformedMessage)
	case tweet.User.Name == nil:
		return CleanMessage{}, fmt.Errorf("%w: missing user.name", ErrMalformedMessage)
	case tweet.User.ScreenName == nil:
		return CleanMessage{}, fmt.Errorf("%w: missing user.screen_name", ErrMalformedMessage)
	case tweet.User.ProfileImageURLHTTPS == nil:
		return CleanMessage{}, fmt.Errorf("%w: missing user.profile_image_url_https", ErrMalformedMessage)
	}

	return CleanMessage{
		Type:     "tweet",
		Text:     *tweet.Text,
		Name:     *tweet.User.Name,
		Username: *tweet.User.ScreenName,
		Avatar:   *tweet.User.ProfileImageURLHTTPS,
		Time:     now.Unix(),
	}, nil
}

// CleanSink projects messages before forwarding them to the wrapped sink.
// Messages that fail projection are logged and dropped; rate-limit and
// error notifications pass through untouched.
type CleanSink struct {
	next   Sink
	logger *slog.Logger
	now    func() time.Time
}

// NewCleanSink wraps next with the clean projection.
func NewCleanSink(next Sink, logger *slog.Logger) *CleanSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanSink{
		next:   next,
		logger: logger,
		now:    time.Now,
	}
}

func (c *CleanSink) OnMessage(msg json.RawMessage) {
	cleaned, err := Clean(msg, c.now())
	if err != nil {
		c.logger.Warn("dropping message", "error", err)
		return
	}

	out, err := json.Marshal(cleaned)
	if err != nil {
		c.logger.Warn("dropping message", "error", err)
		return
	}
	c.next.OnMessage(out)
}

func (c *CleanSink) OnRateLimited() {
	c.next.OnRateLimited()
}

func (c *CleanSink) OnError(err error) {
	c.next.OnError(err)
}
