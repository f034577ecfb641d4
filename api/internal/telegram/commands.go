package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mathsnap/api/internal/translate"
	"mathsnap/api/internal/util"
)

const helpText = `Send a photo of a math problem and I will solve it step by step.
Several photos sent as one album are read as one problem.

/lang [code] - show or set the answer language (en resets)
/languages - list language codes
/engine [name] - show or pick the recognizer
/history - your last solved problems
/delete <id> - remove one problem from history
/clear - remove all history`

const historyPageSize = 10

func (r *Router) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "lang":
		r.handleLang(cid, args)
	case "languages":
		var b strings.Builder
		for _, l := range translate.Languages() {
			fmt.Fprintf(&b, "%s - %s\n", l.Code, l.Name)
		}
		r.send(cid, b.String())
	case "engine":
		r.handleEngine(cid, args)
	case "history":
		r.handleHistory(ctx, cid)
	case "delete":
		if args == "" {
			r.send(cid, "Usage: /delete <id>")
			return
		}
		removed, err := r.History.Delete(ctx, Owner(cid), args)
		if err != nil {
			r.sendError(cid, "delete failed", err)
			return
		}
		if !removed {
			r.send(cid, "No problem with id "+args)
			return
		}
		r.send(cid, "Deleted "+args)
	case "clear":
		if err := r.History.Clear(ctx, Owner(cid)); err != nil {
			r.sendError(cid, "clear failed", err)
			return
		}
		r.send(cid, "History cleared")
	default:
		r.send(cid, "Unknown command. /help lists the commands.")
	}
}

func (r *Router) handleLang(cid int64, arg string) {
	if arg == "" {
		cur := r.Language(cid)
		if cur == "" {
			cur = "en"
		}
		r.send(cid, fmt.Sprintf("Answer language: %s (%s)", cur, translate.LanguageName(cur)))
		return
	}
	code := translate.NormalizeCode(arg)
	if translate.IsSource(code) {
		r.langs.Delete(cid)
		r.send(cid, "Answers will be in English")
		return
	}
	if !translate.IsSupported(code) {
		r.send(cid, "Unsupported language "+arg+". See /languages")
		return
	}
	r.langs.Store(cid, code)
	r.send(cid, "Answers will be in "+translate.LanguageName(code))
}

func (r *Router) handleEngine(cid int64, arg string) {
	if r.Engines == nil {
		r.send(cid, "Recognizer selection is not available")
		return
	}
	owner := Owner(cid)
	if arg == "" {
		r.send(cid, "Recognizer: "+r.Engines.Get(owner).Name()+"\nAvailable: "+strings.Join(r.Engines.Names(), ", "))
		return
	}
	if arg == "default" {
		r.Engines.Reset(owner)
		r.send(cid, "Recognizer: "+r.Engines.Default().Name())
		return
	}
	if err := r.Engines.Set(owner, arg); err != nil {
		r.send(cid, err.Error())
		return
	}
	r.send(cid, "✅ Recognizer: "+r.Engines.Get(owner).Name())
}

func (r *Router) handleHistory(ctx context.Context, cid int64) {
	recs, err := r.History.List(ctx, Owner(cid))
	if err != nil {
		r.sendError(cid, "history failed", err)
		return
	}
	if len(recs) == 0 {
		r.send(cid, "No problem history yet")
		return
	}
	var b strings.Builder
	for i, rec := range recs {
		if i == historyPageSize {
			fmt.Fprintf(&b, "…and %d more", len(recs)-historyPageSize)
			break
		}
		fmt.Fprintf(&b, "%s  %s → %s\n  id: %s\n",
			rec.CreatedAt().UTC().Format("2006-01-02 15:04"),
			util.Truncate(rec.ProblemText, 60),
			util.Truncate(rec.SolutionText, 60),
			rec.ID)
	}
	r.send(cid, b.String())
}
