package visit

import (
	"math/rand"
	"testing"
	"time"

	"frontdesk/internal/clock"
	"frontdesk/internal/models"

	"github.com/stretchr/testify/assert"
)

func visitAt(id string, token int, state models.VisitState, arrival time.Duration) models.Visit {
	return models.Visit{ID: id, Token: token, State: state, ArrivalTime: t0.Add(arrival)}
}

func ids(visits []models.Visit) []string {
	out := make([]string, len(visits))
	for i, v := range visits {
		out[i] = v.ID
	}
	return out
}

func TestRank_BucketsAndArrivalOrder(t *testing.T) {
	visits := []models.Visit{
		visitAt("arrived-early", 1, models.VisitArrived, 0),
		visitAt("exited", 2, models.VisitExited, time.Minute),
		visitAt("waiting", 3, models.VisitAskedToWait, 2*time.Minute),
		visitAt("arrived-late", 4, models.VisitArrived, 3*time.Minute),
		visitAt("called", 5, models.VisitCalledInside, 4*time.Minute),
		visitAt("in-progress", 6, models.VisitInProgress, 5*time.Minute),
	}

	got := Rank(visits)
	assert.Equal(t, []string{"in-progress", "called", "waiting", "arrived-late", "arrived-early"}, ids(got))
}

func TestRank_TieBreaks(t *testing.T) {
	visits := []models.Visit{
		visitAt("b", 2, models.VisitArrived, 0),
		visitAt("a", 2, models.VisitArrived, 0),
		visitAt("c", 3, models.VisitArrived, 0),
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids(Rank(visits)))
}

func TestRank_IsIdempotentAndPure(t *testing.T) {
	states := []models.VisitState{
		models.VisitArrived, models.VisitAskedToWait, models.VisitCalledInside,
		models.VisitInProgress, models.VisitExited,
	}
	rng := rand.New(rand.NewSource(7))
	visits := make([]models.Visit, 50)
	for i := range visits {
		visits[i] = visitAt(string(rune('A'+i%26))+string(rune('a'+i/26)), i+1,
			states[rng.Intn(len(states))], time.Duration(rng.Intn(10))*time.Minute)
	}
	original := append([]models.Visit(nil), visits...)

	once := Rank(visits)
	assert.Equal(t, once, Rank(once))
	assert.Equal(t, original, visits, "input slice is not reordered")

	rng.Shuffle(len(visits), func(i, j int) { visits[i], visits[j] = visits[j], visits[i] })
	assert.Equal(t, once, Rank(visits), "order does not depend on input order")
}

func TestActiveOnAndForDoctor(t *testing.T) {
	dhaka := time.FixedZone("BDT", 6*60*60)
	lateYesterday := time.Date(2025, 1, 14, 23, 30, 0, 0, dhaka)
	today := time.Date(2025, 1, 15, 0, 15, 0, 0, dhaka)

	visits := []models.Visit{
		{ID: "old", DoctorID: "d1", ArrivalTime: lateYesterday, State: models.VisitArrived},
		{ID: "new", DoctorID: "d1", ArrivalTime: today, State: models.VisitArrived},
		{ID: "other", DoctorID: "d2", ArrivalTime: today, State: models.VisitArrived},
	}

	active := ActiveOn(visits, clock.NewDate(2025, 1, 15))
	assert.Equal(t, []string{"new", "other"}, ids(active))
	assert.Equal(t, []string{"new"}, ids(ForDoctor(active, "d1")))
	assert.Len(t, ForDoctor(active, ""), 2)
}
