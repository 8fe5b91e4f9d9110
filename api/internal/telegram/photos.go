package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mathcast/api/internal/pipeline"
)

func (r *Router) acceptPhoto(ctx context.Context, msg tgbotapi.Message) {
	// the last size is the largest
	ph := msg.Photo[len(msg.Photo)-1]
	r.collect(ctx, msg, ph.FileID)
}

func (r *Router) acceptDocument(ctx context.Context, msg tgbotapi.Message) {
	r.collect(ctx, msg, msg.Document.FileID)
}

func (r *Router) collect(ctx context.Context, msg tgbotapi.Message, fileID string) {
	cid := msg.Chat.ID
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		r.send(cid, "❌ Could not fetch the photo: "+err.Error())
		return
	}
	img, err := r.download(ctx, url)
	if err != nil {
		r.send(cid, "❌ Could not download the photo: "+err.Error())
		return
	}

	key := fmt.Sprintf("chat:%d", cid)
	if msg.MediaGroupID != "" {
		key = "grp:" + msg.MediaGroupID
	}
	bi, _ := batches.LoadOrStore(key, &photoBatch{ChatID: cid, Key: key})
	b := bi.(*photoBatch)

	b.mu.Lock()
	b.images = append(b.images, img)
	first := len(b.images) == 1
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(debounce, func() { r.processBatch(ctx, key) })
	b.mu.Unlock()

	if first {
		r.send(cid, "📷 Got it. If the problem spans several photos, send them one after another.")
	}
}

func (r *Router) processBatch(ctx context.Context, key string) {
	bi, ok := batches.LoadAndDelete(key)
	if !ok {
		return
	}
	b := bi.(*photoBatch)
	b.mu.Lock()
	images := append([][]byte(nil), b.images...)
	b.mu.Unlock()
	if len(images) == 0 {
		return
	}

	img := images[0]
	if len(images) > 1 {
		merged, err := combineAsOne(images)
		if err != nil {
			r.send(b.ChatID, "❌ Could not merge the pages: "+err.Error())
			return
		}
		img = merged
	}
	r.submit(ctx, b.ChatID, pipeline.Submission{Image: img, Filename: key + ".jpg"})
}

// combineAsOne stacks the pages vertically, centred on white, and scales
// the result down to maxPixels.
func combineAsOne(images [][]byte) ([]byte, error) {
	decoded := make([]image.Image, 0, len(images))
	maxW, sumH := 0, 0
	for _, b := range images {
		img, _, err := image.Decode(bytes.NewReader(b))
		if err != nil {
			if try, err2 := tryDecodeStrict(b); err2 == nil {
				img = try
			} else {
				return nil, err
			}
		}
		decoded = append(decoded, img)
		bounds := img.Bounds()
		maxW = max(maxW, bounds.Dx())
		sumH += bounds.Dy()
	}
	if maxW == 0 || sumH == 0 {
		return nil, errors.New("empty images")
	}

	dst := image.NewRGBA(image.Rect(0, 0, maxW, sumH))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

	y := 0
	for _, img := range decoded {
		w, h := img.Bounds().Dx(), img.Bounds().Dy()
		x := (maxW - w) / 2
		draw.Draw(dst, image.Rect(x, y, x+w, y+h), img, img.Bounds().Min, draw.Over)
		y += h
	}

	final := image.Image(dst)
	if totalPx := maxW * sumH; totalPx > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(totalPx))
		newW := max(1, int(float64(maxW)*scale+0.5))
		newH := max(1, int(float64(sumH)*scale+0.5))
		final = scaleDownNN(dst, newW, newH)
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, final, &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func tryDecodeStrict(b []byte) (image.Image, error) {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return jpeg.Decode(bytes.NewReader(b))
	}
	if len(b) >= 8 && string(b[1:4]) == "PNG" {
		return png.Decode(bytes.NewReader(b))
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	return img, err
}

func scaleDownNN(src image.Image, newW, newH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	sb := src.Bounds()
	srcW, srcH := sb.Dx(), sb.Dy()
	for y := 0; y < newH; y++ {
		sy := sb.Min.Y + (y*srcH)/newH
		for x := 0; x < newW; x++ {
			sx := sb.Min.X + (x*srcW)/newW
			dst.Set(x, y, src.At(sx, sy))
		}
	}
	return dst
}

func (r *Router) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}

func (r *Router) httpClient() *http.Client {
	if r.HTTPClient != nil {
		return r.HTTPClient
	}
	return &http.Client{Timeout: 60 * time.Second}
}
