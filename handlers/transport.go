package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// AppTransport is an http.RoundTripper that serves requests from a fiber
// app in-process, without opening a socket
type AppTransport struct {
	App *fiber.App
}

func (t AppTransport) RoundTrip(request *http.Request) (*http.Response, error) {
	if err := request.Context().Err(); err != nil {
		return nil, err
	}
	return t.App.Test(request, -1)
}
