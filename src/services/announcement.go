package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"hive/src/models"
)

const announcementKind = 1

// SystemActor is the escalated identity announcement posts are written as.
// Every post it inserts carries a Schnorr signature over the post body.
type SystemActor struct {
	pubKey  string
	privKey string
}

func NewSystemActor(privKey string) (*SystemActor, error) {
	pubKey, err := nostr.GetPublicKey(privKey)
	if err != nil {
		return nil, fmt.Errorf("derive system pubkey: %w", err)
	}
	return &SystemActor{pubKey: pubKey, privKey: privKey}, nil
}

func (a *SystemActor) PubKey() string {
	return a.pubKey
}

func (a *SystemActor) Actor() models.Actor {
	return models.Actor{ID: a.pubKey, System: true}
}

// Sign returns the signature recorded on a system post. The signed payload
// binds the post id, group and body.
func (a *SystemActor) Sign(post models.FeedPost) (string, error) {
	ev := announcementEnvelope(a.pubKey, post)
	if err := ev.Sign(a.privKey); err != nil {
		return "", fmt.Errorf("sign announcement: %w", err)
	}
	return ev.Sig, nil
}

// VerifySystemSignature checks a stored system post against pubKey.
func VerifySystemSignature(pubKey string, post models.FeedPost) bool {
	if post.SystemSignature == "" {
		return false
	}
	ev := announcementEnvelope(pubKey, post)
	ev.ID = ev.GetID()
	ev.Sig = post.SystemSignature
	ok, err := ev.CheckSignature()
	return err == nil && ok
}

func announcementEnvelope(pubKey string, post models.FeedPost) nostr.Event {
	return nostr.Event{
		PubKey:    pubKey,
		CreatedAt: nostr.Timestamp(post.CreatedAt),
		Kind:      announcementKind,
		Tags: nostr.Tags{
			{"h", post.GroupID},
			{"d", post.PostID},
		},
		Content: post.Body,
	}
}

// FormatAnnouncement renders the fixed announcement body for an event. The
// same event and location always produce the same bytes.
func FormatAnnouncement(event models.GroupEvent, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	var b strings.Builder

	label := strings.TrimSpace(event.TypeLabel)
	if label == "" {
		label = "Event"
	}
	fmt.Fprintf(&b, "New %s: %s\n", label, strings.TrimSpace(event.Title))

	start := time.Unix(event.StartsAt, 0).In(loc)
	fmt.Fprintf(&b, "When: %s", start.Format("Mon, Jan 2 2006 at 15:04 MST"))
	if event.EndsAt > 0 {
		end := time.Unix(event.EndsAt, 0).In(loc)
		if sameDay(start, end) {
			fmt.Fprintf(&b, " until %s", end.Format("15:04 MST"))
		} else {
			fmt.Fprintf(&b, " until %s", end.Format("Mon, Jan 2 2006 at 15:04 MST"))
		}
	}
	b.WriteString("\n")

	if desc := strings.TrimSpace(event.Description); desc != "" {
		b.WriteString("\n")
		b.WriteString(desc)
		b.WriteString("\n")
	}
	return b.String()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
