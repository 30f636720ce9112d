// Package notion publishes lead cards to a Notion database board.
package notion

import (
	"context"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// Card is one lead entry on the board.
type Card struct {
	Name     string
	Category string
	City     string
	Score    int
	Status   string
	Email    string
	Phone    string
	Website  string
	MapsURL  string
}

// Client creates lead cards on a configured board.
type Client interface {
	CreateCard(ctx context.Context, card Card) (string, error)
}

type apiClient struct {
	api     *notionapi.Client
	boardID notionapi.DatabaseID
}

// NewClient creates a Notion client bound to one lead board database.
func NewClient(token, boardID string) Client {
	return &apiClient{
		api:     notionapi.NewClient(notionapi.Token(token)),
		boardID: notionapi.DatabaseID(boardID),
	}
}

func (c *apiClient) CreateCard(ctx context.Context, card Card) (string, error) {
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{{Text: &notionapi.Text{Content: card.Name}}},
		},
		"Score": notionapi.NumberProperty{
			Number: float64(card.Score),
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: card.Status},
		},
	}
	if card.Category != "" {
		props["Category"] = notionapi.SelectProperty{Select: notionapi.Option{Name: card.Category}}
	}
	if card.City != "" {
		props["City"] = richText(card.City)
	}
	if card.Email != "" {
		props["Email"] = notionapi.EmailProperty{Email: card.Email}
	}
	if card.Phone != "" {
		props["Phone"] = notionapi.PhoneNumberProperty{PhoneNumber: card.Phone}
	}
	if card.Website != "" {
		props["Website"] = notionapi.URLProperty{URL: card.Website}
	}
	if card.MapsURL != "" {
		props["Maps"] = notionapi.URLProperty{URL: card.MapsURL}
	}

	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: c.boardID,
		},
		Properties: props,
	})
	if err != nil {
		return "", eris.Wrap(err, "notion: create card")
	}
	return string(page.ID), nil
}

func richText(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		RichText: []notionapi.RichText{{Text: &notionapi.Text{Content: s}}},
	}
}
