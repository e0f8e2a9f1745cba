// Package caring implements the caring reminder: a random eye-care picture
// from an image album.
package caring

import (
	"context"

	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
	"github.com/garyellow/eyecare-linebot-go/internal/lineutil"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Module constants
const (
	ModuleName = "caring"

	// TextImageError is replied when no image could be fetched.
	TextImageError = "img_error"
)

// ImageSource picks one image of an album and returns its HTTPS link.
type ImageSource interface {
	RandomImageURL(ctx context.Context, albumID string) (string, error)
}

// Handler replies to the caring trigger with a random album image.
type Handler struct {
	images  ImageSource
	albumID string
	trigger string
	logger  *logger.Logger
	wrap    *domerrors.ErrorWrapper
}

// NewHandler creates a caring handler.
func NewHandler(images ImageSource, albumID, trigger string, log *logger.Logger) *Handler {
	return &Handler{
		images:  images,
		albumID: albumID,
		trigger: trigger,
		logger:  log.WithModule(ModuleName),
		wrap:    domerrors.NewWrapper(ModuleName, "random_image"),
	}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// CanHandle reports whether text is the caring trigger.
func (h *Handler) CanHandle(text string) bool {
	return text == h.trigger
}

// HandleMessage replies with one image whose preview is the image itself.
func (h *Handler) HandleMessage(ctx context.Context, _ string) ([]messaging_api.MessageInterface, error) {
	link, err := h.images.RandomImageURL(ctx, h.albumID)
	if err != nil {
		return nil, h.wrap.Wrap(err, TextImageError)
	}
	h.logger.WithField("url", link).Debug("Picked caring image")
	return []messaging_api.MessageInterface{lineutil.NewImageMessage(link, link)}, nil
}
