package domain

import (
	"fmt"
	"sort"
	"time"
)

// CandidateMatch is one (event, campaign) pairing produced by a matcher.
type CandidateMatch struct {
	EventID    string
	CampaignID string
	Method     Method
	Confidence float64
	// MatchedAt carries the event time of the touch so ordering and decay
	// stay deterministic under replays.
	MatchedAt time.Time
}

// ConversionIdentity groups reports of the same underlying conversion:
// same subject, same conversion type, same calendar minute.
type ConversionIdentity struct {
	Subject string
	Type    string
	Bucket  time.Time
}

func IdentityOf(ev AttributionEvent, bucket time.Duration) ConversionIdentity {
	return ConversionIdentity{
		Subject: ev.Conversion.SubjectKey(),
		Type:    ev.Conversion.Type,
		Bucket:  ev.ObservedAt.UTC().Truncate(bucket),
	}
}

func (id ConversionIdentity) Key() string {
	return fmt.Sprintf("%s|%s|%d", id.Subject, id.Type, id.Bucket.Unix())
}

// ConversionRecord is one logical conversion after dedup. It stays open
// for the dedup window, then freezes; late touchpoints inside the
// recompute horizon amend it and bump the revision.
type ConversionRecord struct {
	ID          string
	Identity    ConversionIdentity
	Conversion  Conversion
	FirstSeen   time.Time
	EventIDs    []string
	Touchpoints []CandidateMatch
	// Revision counts applied allocations; it keys the aggregate ledger so
	// amendments re-apply while redeliveries do not.
	Revision int
	FrozenAt time.Time
	Stale    bool
	// LastApplied is the allocation already folded into aggregates, kept so
	// amendments can emit signed compensating deltas.
	LastApplied []AttributionResult
}

func (r *ConversionRecord) Frozen() bool {
	return !r.FrozenAt.IsZero()
}

func (r *ConversionRecord) Attributed() bool {
	return len(r.Touchpoints) > 0
}

// Append adds touchpoints keeping the list ordered by MatchedAt.
func (r *ConversionRecord) Append(eventID string, matches []CandidateMatch) {
	r.EventIDs = append(r.EventIDs, eventID)
	r.Touchpoints = append(r.Touchpoints, matches...)
	sort.SliceStable(r.Touchpoints, func(i, j int) bool {
		return r.Touchpoints[i].MatchedAt.Before(r.Touchpoints[j].MatchedAt)
	})
}

// Winner picks the single-touch winner deterministically: highest
// confidence first, most recent touch as the tie-break.
func (r *ConversionRecord) Winner() (CandidateMatch, bool) {
	if len(r.Touchpoints) == 0 {
		return CandidateMatch{}, false
	}
	best := r.Touchpoints[0]
	for _, tp := range r.Touchpoints[1:] {
		if tp.Confidence > best.Confidence ||
			(tp.Confidence == best.Confidence && tp.MatchedAt.After(best.MatchedAt)) {
			best = tp
		}
	}
	return best, true
}

// UnattributedCampaignID is the synthetic bucket that keeps count and
// value of conversions no campaign claimed.
const UnattributedCampaignID = ""

// AttributionResult is the credit one campaign receives for a conversion.
type AttributionResult struct {
	ConversionID string
	CampaignID   string
	Weight       float64
	// Confidence of the touchpoint(s) behind this credit, used for the
	// aggregate accuracy proxy.
	Confidence float64
}

// EffectiveResults is the allocation as the aggregation engine sees it:
// a record with no touchpoints still counts, as a full conversion in the
// synthetic unattributed bucket.
func EffectiveResults(rec *ConversionRecord, results []AttributionResult) []AttributionResult {
	if len(results) > 0 {
		return results
	}
	return []AttributionResult{{
		ConversionID: rec.ID,
		CampaignID:   UnattributedCampaignID,
		Weight:       1.0,
	}}
}
