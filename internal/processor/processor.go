// Package processor turns raw chat messages into announcements. It owns the
// whole filter chain: dedup, cleaning, length and stop-word filters, repeat
// suppression, optional toxicity scoring and translation, and the final
// speech transform. Each inbound message yields at most one announcement.
package processor

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"

	"github.com/fjudin/chatvoice/internal/mailbox"
	"github.com/fjudin/chatvoice/internal/message"
	"github.com/fjudin/chatvoice/internal/speech"
	"github.com/fjudin/chatvoice/internal/toxicity"
	"github.com/fjudin/chatvoice/internal/translate"
)

// Filter rejection reasons reported in display events.
const (
	ReasonStopWord = "stop-word"
	ReasonSpam     = "spam"
	ReasonToxicity = "toxicity"
)

// systemPrefixes mark platform notices (subscriptions, donations) that can
// optionally be kept out of the speech pipeline.
var systemPrefixes = []string{"subscribed", "donated", "became a member"}

// Options configures the filter chain.
type Options struct {
	MinLength int
	MaxLength int
	StopWords []string

	// SpamFilter suppresses exact repeats from non-privileged authors.
	SpamFilter bool
	// SkipSystem drops platform notice messages.
	SkipSystem bool
	// PrivilegedOnly drops messages from non-privileged authors.
	PrivilegedOnly bool

	// ReadAuthor prefixes the speech text with "<author> said:", ReadPlatform
	// with the platform name.
	ReadAuthor   bool
	ReadPlatform bool

	// ToxicityThreshold rejects messages whose highest toxicity category
	// score exceeds it. Zero disables the filter even when a scorer is set.
	ToxicityThreshold float64

	// TranslateTarget is the language code messages are translated into
	// before synthesis. Empty disables translation.
	TranslateTarget string
}

// Processor applies the filter chain. Process is safe to call concurrently
// from multiple adapter goroutines: the dedup and spam windows carry their
// own locks, counters are atomic, and slow collaborator calls (toxicity,
// translation) happen outside any processor lock so one adapter's slow
// message never stalls another's.
type Processor struct {
	opts       Options
	seen       *window
	spam       *window
	stats      *Stats
	box        *mailbox.Mailbox
	scorer     toxicity.Scorer
	translator translate.Translator
}

// New creates a processor. scorer and translator may be nil to disable the
// corresponding steps.
func New(opts Options, stats *Stats, box *mailbox.Mailbox, scorer toxicity.Scorer, translator translate.Translator) *Processor {
	return &Processor{
		opts:       opts,
		seen:       newWindow(dedupCapacity, dedupLow),
		spam:       newWindow(spamCapacity, spamCapacity),
		stats:      stats,
		box:        box,
		scorer:     scorer,
		translator: translator,
	}
}

// Process runs one message through the chain and returns its announcement,
// or nil if any step rejected it. Rejections other than duplicates surface a
// display event; duplicates are dropped silently.
func (p *Processor) Process(ctx context.Context, msg message.ChatMessage) *speech.Announcement {
	if p.seen.SeenOrAdd(msg.Key()) {
		return nil
	}
	p.stats.AddMessage()

	if p.opts.PrivilegedOnly && !msg.Privileged {
		return nil
	}
	if p.opts.SkipSystem && isSystemNotice(msg.Text) {
		return nil
	}

	cleaned := Clean(msg.Text)
	if len([]rune(cleaned)) < p.opts.MinLength {
		return nil
	}

	if stop, hit := containsStopWord(cleaned, p.opts.StopWords); hit {
		p.reject(msg, cleaned, ReasonStopWord+": "+stop)
		return nil
	}

	if p.opts.SpamFilter && !msg.Privileged {
		if p.spam.SeenOrAdd(fingerprint(msg.Platform, msg.Author, cleaned)) {
			p.stats.AddSpam()
			p.reject(msg, cleaned, ReasonSpam)
			return nil
		}
	}

	if p.scorer != nil && p.opts.ToxicityThreshold > 0 {
		if reason, toxic := p.checkToxicity(ctx, cleaned); toxic {
			p.reject(msg, cleaned, reason)
			return nil
		}
	}

	if p.translator != nil && p.opts.TranslateTarget != "" {
		translated := p.translateOrFallback(ctx, cleaned)
		if translated != cleaned {
			// Re-clean and re-check length on the translated text.
			cleaned = Clean(translated)
			if len([]rune(cleaned)) < p.opts.MinLength {
				return nil
			}
		}
	}

	ann := &speech.Announcement{
		ID:          uuid.NewString(),
		Platform:    msg.Platform,
		Author:      msg.Author,
		DisplayText: cleaned,
		SpeechText:  p.speechText(msg, cleaned),
	}
	p.box.Post(mailbox.Chat(msg.Platform, msg.Author, cleaned))
	return ann
}

// checkToxicity scores the text and reports whether it crosses the
// threshold. Scorer failures fail open: an unreachable classifier must not
// silence the whole stream.
func (p *Processor) checkToxicity(ctx context.Context, cleaned string) (string, bool) {
	scores, err := p.scorer.Score(ctx, cleaned)
	if err != nil {
		p.box.Post(mailbox.Systemf(mailbox.LevelError, "toxicity check failed: %v", err))
		return "", false
	}
	if category, score := toxicity.Max(scores); score > p.opts.ToxicityThreshold {
		return fmt.Sprintf("%s: %s", ReasonToxicity, category), true
	}
	return "", false
}

// translateOrFallback returns the translated text, or the original when the
// translator fails.
func (p *Processor) translateOrFallback(ctx context.Context, cleaned string) string {
	translated, err := p.translator.Translate(ctx, cleaned, p.opts.TranslateTarget)
	if err != nil {
		p.box.Post(mailbox.Systemf(mailbox.LevelError, "translation failed: %v", err))
		return cleaned
	}
	return translated
}

// speechText builds the string handed to synthesis: length clamp, numbers
// spelled out, optional prefixes.
func (p *Processor) speechText(msg message.ChatMessage, cleaned string) string {
	text := clampLength(cleaned, p.opts.MaxLength)
	text = SpellNumbers(text)

	var prefix string
	if p.opts.ReadPlatform {
		prefix = string(msg.Platform) + ". "
	}
	if p.opts.ReadAuthor {
		prefix += msg.Author + " said: "
	}
	return prefix + text
}

func (p *Processor) reject(msg message.ChatMessage, cleaned, reason string) {
	p.box.Post(mailbox.Filtered(msg.Platform, msg.Author, cleaned, reason))
}

func isSystemNotice(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, prefix := range systemPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// fingerprint identifies an exact repeat: same platform, same author, same
// cleaned text.
func fingerprint(platform message.Platform, author, cleaned string) string {
	h := fnv.New64a()
	h.Write([]byte(platform))
	h.Write([]byte{0})
	h.Write([]byte(author))
	h.Write([]byte{0})
	h.Write([]byte(cleaned))
	return fmt.Sprintf("%x", h.Sum64())
}
