package discord

import (
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"github.com/keshon/disbot/internal/gateway"
)

// closeAuthenticationFailed is the gateway close code for an invalid token.
const closeAuthenticationFailed = 4004

// classify maps discordgo, websocket and transport errors onto the gateway
// error types. Errors it does not recognise are returned unchanged.
func classify(err error) error {
	if err == nil || isClassified(err) {
		return err
	}

	var ce *websocket.CloseError
	if errors.As(err, &ce) && ce.Code == closeAuthenticationFailed {
		return &gateway.AuthError{Err: err}
	}
	if strings.Contains(err.Error(), "close "+strconv.Itoa(closeAuthenticationFailed)) {
		return &gateway.AuthError{Err: err}
	}
	if errors.Is(err, discordgo.ErrUnauthorized) {
		return &gateway.AuthError{Err: err}
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		var wait time.Duration
		if rl.RateLimit != nil && rl.TooManyRequests != nil {
			wait = rl.TooManyRequests.RetryAfter
		}
		return &gateway.RateLimitError{Wait: wait, Err: err}
	}

	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		switch code := re.Response.StatusCode; {
		case code == http.StatusUnauthorized:
			return &gateway.AuthError{Err: err}
		case code == http.StatusTooManyRequests:
			return &gateway.RateLimitError{Wait: retryAfter(re.Response.Header), Err: err}
		case code >= 500:
			return &gateway.NetworkError{Err: err}
		}
		return err
	}

	var ne net.Error
	if errors.As(err, &ne) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &gateway.NetworkError{Err: err}
	}
	return err
}

func isClassified(err error) bool {
	return gateway.IsAuth(err) || gateway.IsRateLimit(err) || gateway.IsNetwork(err)
}

// retryAfter reads the Retry-After header, in seconds.
func retryAfter(h http.Header) time.Duration {
	secs, err := strconv.ParseFloat(h.Get("Retry-After"), 64)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}
