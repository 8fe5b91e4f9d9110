// Package telegram is the chat front end: a photo or a typed problem in,
// a live progress message and the worked solution out.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mathcast/api/internal/ocr"
	"mathcast/api/internal/pipeline"
	"mathcast/api/internal/tracker"
)

// Bot is the slice of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Submitter interface {
	Submit(sub pipeline.Submission) (string, error)
	Poll(id string) (tracker.Task, bool)
}

type Router struct {
	Bot     Bot
	Service Submitter
	OCR     *ocr.Manager
	Ping    func(ctx context.Context) error

	PollInterval time.Duration
	// WatchLimit bounds how long one task's progress message is kept live.
	WatchLimit time.Duration
	HTTPClient *http.Client
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		r.HandleCommand(ctx, msg)
	case len(msg.Photo) > 0:
		r.acceptPhoto(ctx, *msg)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptDocument(ctx, *msg)
	case strings.TrimSpace(msg.Text) != "":
		r.submit(ctx, cid, pipeline.Submission{Text: msg.Text})
	}
}

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, startText)
	case "health":
		if r.Ping == nil {
			r.send(cid, "✅ OK")
			return
		}
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := r.Ping(pctx); err != nil {
			r.send(cid, "⚠️ Degraded: database unreachable")
			return
		}
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "Unknown command. Try /start")
	}
}

const startText = "Send a photo of a math problem, or type it, and I will solve it step by step and render a short video.\n" +
	"Commands: /health, /engine"

func (r *Router) handleEngineCommand(chatID int64, args string) {
	if r.OCR == nil {
		r.send(chatID, "No OCR engines are configured.")
		return
	}
	name := strings.ToLower(strings.TrimSpace(args))
	if name == "" {
		cur := "none"
		if e := r.OCR.Get(chatID); e != nil {
			cur = e.Name()
		}
		r.send(chatID, "Current OCR engine: "+cur+"\nAvailable: "+strings.Join(r.OCR.Names(), " | ")+"\nUsage: /engine <name>")
		return
	}
	if !r.OCR.Set(chatID, name) {
		r.send(chatID, "Unknown engine. Available: "+strings.Join(r.OCR.Names(), " | "))
		return
	}
	r.send(chatID, "✅ OCR engine: "+name)
}

func (r *Router) submit(ctx context.Context, chatID int64, sub pipeline.Submission) {
	if len(sub.Image) > 0 && r.OCR != nil {
		sub.OCR = r.OCR.Get(chatID)
	}
	id, err := r.Service.Submit(sub)
	if err != nil {
		r.send(chatID, "❌ "+userError(err))
		return
	}
	log.Printf("telegram: chat %d submitted task %s", chatID, id)
	m, err := r.Bot.Send(tgbotapi.NewMessage(chatID, progressText(tracker.Task{Status: tracker.StatusPending, Message: "Queued"})))
	if err != nil {
		log.Printf("telegram: send progress message: %v", err)
	}
	go r.watch(ctx, chatID, m.MessageID, id)
}

// watch keeps the progress message current until the task ends, then
// posts the result.
func (r *Router) watch(ctx context.Context, chatID int64, msgID int, taskID string) {
	interval := r.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	limit := r.WatchLimit
	if limit <= 0 {
		limit = 15 * time.Minute
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	giveUp := time.NewTimer(limit)
	defer giveUp.Stop()

	last := ""
	for {
		task, ok := r.Service.Poll(taskID)
		if !ok {
			r.send(chatID, "❌ Lost track of the task. Please send the problem again.")
			return
		}
		if task.Status.Terminal() {
			r.finish(chatID, msgID, task)
			return
		}
		if txt := progressText(task); txt != last {
			r.edit(chatID, msgID, txt)
			last = txt
		}
		select {
		case <-ctx.Done():
			return
		case <-giveUp.C:
			r.send(chatID, "⌛ This is taking too long. The task id is "+taskID)
			return
		case <-tick.C:
		}
	}
}

func (r *Router) finish(chatID int64, msgID int, task tracker.Task) {
	r.edit(chatID, msgID, progressText(task))
	if task.Status == tracker.StatusFailed {
		r.send(chatID, "❌ "+task.Error)
		return
	}
	if task.Result != nil {
		r.send(chatID, formatSolution(*task.Result))
	}
}

func (r *Router) send(chatID int64, text string) {
	if _, err := r.Bot.Send(tgbotapi.NewMessage(chatID, clip(text))); err != nil {
		log.Printf("telegram: send to %d: %v", chatID, err)
	}
}

func (r *Router) edit(chatID int64, msgID int, text string) {
	if msgID == 0 {
		return
	}
	if _, err := r.Bot.Send(tgbotapi.NewEditMessageText(chatID, msgID, clip(text))); err != nil {
		log.Printf("telegram: edit %d/%d: %v", chatID, msgID, err)
	}
}

func userError(err error) string {
	switch {
	case errors.Is(err, pipeline.ErrTooLarge):
		return "The image is too large."
	case errors.Is(err, pipeline.ErrEmptySubmission):
		return "Send a photo or type the problem."
	case errors.Is(err, pipeline.ErrShuttingDown):
		return "The service is restarting, try again in a minute."
	}
	return fmt.Sprintf("Could not accept the problem: %v", err)
}
