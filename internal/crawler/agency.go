package crawler

import (
	"context"

	"sjsage522/estateworker/internal/normalize"
)

// AgencyContact is read from the agency contact modal.
type AgencyContact struct {
	Name  string
	Phone string
}

// agencyContact opens the contact modal and reads name and phone. Any
// failing step yields nil.
func (e *Extractor) agencyContact(ctx context.Context, page Page) *AgencyContact {
	log := e.logger.WithField("url", page.URL())

	ok, err := page.Exists(ctx, e.sel.AgencyTrigger)
	if err != nil || !ok {
		return nil
	}
	if err := page.Click(ctx, e.sel.AgencyTrigger); err != nil {
		log.Debug().Err(err).Msg("Failed to open agency modal")
		return nil
	}
	defer func() {
		if ok, _ := page.Exists(ctx, e.sel.AgencyModalClose); ok {
			if err := page.Click(ctx, e.sel.AgencyModalClose); err != nil {
				log.Debug().Err(err).Msg("Failed to close agency modal")
			}
		}
	}()

	if err := page.WaitVisible(ctx, e.sel.AgencyModal, e.selectorTimeout); err != nil {
		log.Debug().Err(err).Msg("Agency modal did not render")
		return nil
	}

	doc, err := Snapshot(ctx, page)
	if err != nil {
		return nil
	}
	contact := &AgencyContact{
		Name:  cleanText(doc.Find(e.sel.AgencyModalName).First().Text()),
		Phone: normalize.DigitsOnly(doc.Find(e.sel.AgencyModalPhone).First().Text()),
	}
	if contact.Name == "" && contact.Phone == "" {
		return nil
	}
	return contact
}
