package ocr

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Best runs several engines on the same image and keeps the read that
// ranks highest on confidence plus how much it looks like math.
type Best struct {
	engines []Extractor
}

func NewBest(engines ...Extractor) *Best {
	return &Best{engines: engines}
}

func (b *Best) Name() string {
	names := make([]string, len(b.engines))
	for i, e := range b.engines {
		names[i] = e.Name()
	}
	return "best(" + strings.Join(names, ",") + ")"
}

// ExtractText fails only when every engine fails or reads nothing.
func (b *Best) ExtractText(ctx context.Context, image []byte) (Text, error) {
	switch len(b.engines) {
	case 0:
		return Text{}, errors.New("ocr: no engines configured")
	case 1:
		return b.engines[0].ExtractText(ctx, image)
	}

	reads := make([]Text, len(b.engines))
	errs := make([]error, len(b.engines))
	var g errgroup.Group
	for i, e := range b.engines {
		g.Go(func() error {
			t, err := e.ExtractText(ctx, image)
			if err == nil && strings.TrimSpace(t.Content) == "" {
				err = ErrNoText
			}
			if err != nil {
				log.Printf("ocr: %s: %v", e.Name(), err)
				errs[i] = fmt.Errorf("%s: %w", e.Name(), err)
				return nil
			}
			reads[i] = t
			return nil
		})
	}
	_ = g.Wait()

	best := -1
	for i, t := range reads {
		if errs[i] != nil {
			continue
		}
		if best < 0 || rank(t) > rank(reads[best]) {
			best = i
		}
	}
	if best < 0 {
		return Text{}, errors.Join(errs...)
	}
	return reads[best], nil
}
