// Package disease implements the eye-disease menu and its postback lookup.
package disease

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyellow/eyecare-linebot-go/internal/bot"
	domerrors "github.com/garyellow/eyecare-linebot-go/internal/errors"
	"github.com/garyellow/eyecare-linebot-go/internal/lineutil"
	"github.com/garyellow/eyecare-linebot-go/internal/logger"
	"github.com/garyellow/eyecare-linebot-go/internal/storage"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
)

// Module constants
const (
	ModuleName = "disease"

	menuAltText = "認識眼疾選單"
	menuTitle   = "認識眼疾"
	menuText    = "想了解哪一種眼疾呢？"
)

// Reply texts for lookup failures.
const (
	TextInvalidMenu  = "error"
	TextConnectError = "connect error"
	TextQueryError   = "query error"
	TextNotFound     = "not found"
)

// Topic is one button of the disease menu.
type Topic struct {
	Type  string
	Label string
}

// DefaultTopics are the diseases offered by the menu, in button order.
var DefaultTopics = []Topic{
	{Type: "1", Label: "白內障"},
	{Type: "2", Label: "青光眼"},
	{Type: "3", Label: "黃斑部病變"},
	{Type: "4", Label: "乾眼症"},
}

// Handler answers the menu trigger and disease lookup postbacks.
type Handler struct {
	repo    storage.DiseaseRepository
	logger  *logger.Logger
	trigger string
	topics  []Topic
	wrap    *domerrors.ErrorWrapper
}

// NewHandler creates a disease handler. A nil topics slice selects DefaultTopics.
func NewHandler(repo storage.DiseaseRepository, log *logger.Logger, trigger string, topics []Topic) *Handler {
	if topics == nil {
		topics = DefaultTopics
	}
	return &Handler{
		repo:    repo,
		logger:  log.WithModule(ModuleName),
		trigger: trigger,
		topics:  topics,
		wrap:    domerrors.NewWrapper(ModuleName, "lookup"),
	}
}

// Name returns the module name
func (h *Handler) Name() string {
	return ModuleName
}

// CanHandle reports whether text is the menu trigger.
func (h *Handler) CanHandle(text string) bool {
	return text == h.trigger
}

// HandleMessage replies with the disease menu.
func (h *Handler) HandleMessage(_ context.Context, _ string) ([]messaging_api.MessageInterface, error) {
	return []messaging_api.MessageInterface{h.Menu()}, nil
}

// Menu builds the buttons template whose actions post lookup commands.
func (h *Handler) Menu() *messaging_api.TemplateMessage {
	actions := make([]lineutil.Action, 0, len(h.topics))
	for _, t := range h.topics {
		cmd := bot.PostbackCommand{
			Menu:   bot.MenuDiseaseLookup,
			Type:   t.Type,
			Number: bot.DefaultDiseaseNumber,
		}
		actions = append(actions, lineutil.NewPostbackAction(t.Label, t.Label, cmd.Encode()))
	}
	return lineutil.NewButtonsTemplate(menuAltText, menuTitle, menuText, actions)
}

// HandlePostback looks up the selected description.
// Errors carry the reply text for the user.
func (h *Handler) HandlePostback(ctx context.Context, cmd bot.PostbackCommand) ([]messaging_api.MessageInterface, error) {
	if cmd.Menu != bot.MenuDiseaseLookup {
		return nil, h.wrap.Wrap(
			domerrors.NewValidationError("menu", fmt.Sprintf("unsupported menu %d", cmd.Menu)),
			TextInvalidMenu,
		)
	}

	d, err := h.repo.GetDisease(ctx, cmd.Type, cmd.Number)
	if err != nil {
		switch {
		case errors.Is(err, domerrors.ErrNotFound):
			h.logger.WithField("type", cmd.Type).WithField("number", cmd.Number).Info("Disease not found")
			return nil, h.wrap.Wrap(err, TextNotFound)
		case errors.Is(err, domerrors.ErrStoreConnection):
			return nil, h.wrap.Wrap(err, TextConnectError)
		default:
			return nil, h.wrap.Wrap(err, TextQueryError)
		}
	}

	return []messaging_api.MessageInterface{lineutil.NewTextMessage(d.DisplayText())}, nil
}
