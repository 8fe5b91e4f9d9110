package telegram

import (
	"sync"
	"time"
)

const (
	debounce  = 1200 * time.Millisecond
	maxPixels = 18_000_000
)

// photoBatch collects the pages of one album (or a quick burst of photos
// in one chat) so they are solved as a single image.
type photoBatch struct {
	ChatID int64
	Key    string // "grp:<mediaGroupID>" | "chat:<chatID>"

	mu     sync.Mutex
	images [][]byte
	timer  *time.Timer
}

var batches sync.Map // key -> *photoBatch
