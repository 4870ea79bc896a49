package visit

import (
	"sort"

	"frontdesk/internal/clock"
	"frontdesk/internal/models"
)

// bucket orders states on queue screens; lower comes first. Exited visits
// are not listed.
var bucket = map[models.VisitState]int{
	models.VisitInProgress:   0,
	models.VisitCalledInside: 1,
	models.VisitAskedToWait:  2,
	models.VisitArrived:      3,
}

// Rank returns the display order of visits: in progress, called inside,
// asked to wait, then arrived, newest arrival first inside each group.
// Exited visits are dropped. Ties on arrival fall back to the higher token,
// then the id, so the order is total and Rank(Rank(v)) equals Rank(v).
func Rank(visits []models.Visit) []models.Visit {
	out := make([]models.Visit, 0, len(visits))
	for _, v := range visits {
		if _, listed := bucket[v.State]; listed {
			out = append(out, v)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if bucket[a.State] != bucket[b.State] {
			return bucket[a.State] < bucket[b.State]
		}
		if !a.ArrivalTime.Equal(b.ArrivalTime) {
			return a.ArrivalTime.After(b.ArrivalTime)
		}
		if a.Token != b.Token {
			return a.Token > b.Token
		}
		return a.ID < b.ID
	})
	return out
}

// ActiveOn keeps the visits that arrived on day. Arrival times are read in
// their stored location, which is the clinic's.
func ActiveOn(visits []models.Visit, day clock.Date) []models.Visit {
	var out []models.Visit
	for _, v := range visits {
		if v.ArrivalDay() == day {
			out = append(out, v)
		}
	}
	return out
}

// ForDoctor keeps the visits assigned to doctorID. An empty id keeps all.
func ForDoctor(visits []models.Visit, doctorID string) []models.Visit {
	if doctorID == "" {
		return visits
	}
	var out []models.Visit
	for _, v := range visits {
		if v.DoctorID == doctorID {
			out = append(out, v)
		}
	}
	return out
}
