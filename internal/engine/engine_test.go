package engine

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-eidolon/eidolon/internal/graph"
	"github.com/project-eidolon/eidolon/internal/strain"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := graph.NewStore(nil, strain.DefaultParams())
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(store, strain.DefaultParams(), log)
}

// mustCreate adds an entity and forces its strain scalars.
func mustCreate(t *testing.T, e *Engine, name string, amplitude, resistance float64) graph.Entity {
	t.Helper()
	ent, err := e.Store().CreateEntity(name, graph.EntityConcept, "")
	require.NoError(t, err)
	ent.Strain.Amplitude = amplitude
	ent.Strain.Resistance = resistance
	require.NoError(t, e.Store().UpdateEntity(ent))
	got, ok := e.Store().GetEntity(ent.ID)
	require.True(t, ok)
	return *got
}

func TestConfidenceScore(t *testing.T) {
	e := newTestEngine(t)
	ent := mustCreate(t, e, "Sun", 0.8, 0.2)

	score, err := e.ConfidenceScoreFor(ent.ID)
	require.NoError(t, err)

	assert.Equal(t, ent.ID, score.EntityID)
	assert.InDelta(t, 0.8, score.AmplitudeScore, 1e-9)
	assert.InDelta(t, 0.8, score.ResistanceScore, 1e-9) // 1 - 0.2
	assert.Zero(t, score.FrequencyScore)

	// weights 0.4/0.3/0.3: (0.8*0.4 + 0.8*0.3 + 0*0.3) = 0.56
	assert.InDelta(t, 0.56, score.OverallScore, 1e-9)
}

func TestConfidenceScoreIdempotent(t *testing.T) {
	e := newTestEngine(t)
	ent := mustCreate(t, e, "Sun", 0.5, 0.5)

	first, err := e.ConfidenceScoreFor(ent.ID)
	require.NoError(t, err)
	second, err := e.ConfidenceScoreFor(ent.ID)
	require.NoError(t, err)
	assert.Equal(t, *first, *second, "no intervening mutation, scores must match")
}

func TestConfidenceScoreMissingEntity(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ConfidenceScoreFor("ghost")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestConfidenceCacheInvalidatedOnUpdate(t *testing.T) {
	e := newTestEngine(t)
	ent := mustCreate(t, e, "Sun", 0.2, 0.5)

	before, err := e.ConfidenceScoreFor(ent.ID)
	require.NoError(t, err)

	ent.Strain.Amplitude = 0.9
	require.NoError(t, e.Store().UpdateEntity(&ent))

	after, err := e.ConfidenceScoreFor(ent.ID)
	require.NoError(t, err)
	assert.Greater(t, after.AmplitudeScore, before.AmplitudeScore,
		"update must drop the cached score")
}

func TestConfidenceCacheInvalidatedOnDelete(t *testing.T) {
	e := newTestEngine(t)
	ent := mustCreate(t, e, "Sun", 0.5, 0.5)

	_, err := e.ConfidenceScoreFor(ent.ID)
	require.NoError(t, err)

	require.NoError(t, e.Store().DeleteEntity(ent.ID))
	_, err = e.ConfidenceScoreFor(ent.ID)
	assert.ErrorIs(t, err, graph.ErrNotFound, "deleted entity must not score from cache")
}

func TestConfidenceFrequencyComponent(t *testing.T) {
	e := newTestEngine(t)
	ent := mustCreate(t, e, "Sun", 0.0, 0.5)

	ctx, err := e.Store().CreateContext("astronomy", "")
	require.NoError(t, err)
	require.NoError(t, e.Store().AddEntityToContext(ctx.ID, ent.ID))

	score, err := e.ConfidenceScoreFor(ent.ID)
	require.NoError(t, err)
	// frequency 1 over norm 10
	assert.InDelta(t, 0.1, score.FrequencyScore, 1e-9)
}

func TestDetectDissonance(t *testing.T) {
	e := newTestEngine(t)

	hot, err := e.Store().CreateEntity("Sun is Hot", graph.EntityConcept, "")
	require.NoError(t, err)
	hot.Attributes["temperature"] = "hot"
	require.NoError(t, e.Store().UpdateEntity(hot))

	cold, err := e.Store().CreateEntity("Sun is Cold", graph.EntityConcept, "")
	require.NoError(t, err)
	cold.Attributes["temperature"] = "cold"
	require.NoError(t, e.Store().UpdateEntity(cold))

	amount, err := e.DetectDissonance(hot.ID, cold.ID, 0.0)
	require.NoError(t, err)
	assert.Greater(t, amount, 0.0, "contradictory attributes must produce dissonance")

	// Detection is read-only: no strain was injected.
	got, _ := e.Store().GetEntity(hot.ID)
	assert.Zero(t, got.Strain.Amplitude)
}

func TestDetectDissonanceAgreementIsZero(t *testing.T) {
	e := newTestEngine(t)

	a, _ := e.Store().CreateEntity("A", graph.EntityConcept, "")
	a.Attributes["temperature"] = "hot"
	require.NoError(t, e.Store().UpdateEntity(a))

	b, _ := e.Store().CreateEntity("B", graph.EntityConcept, "")
	b.Attributes["temperature"] = "hot"
	require.NoError(t, e.Store().UpdateEntity(b))

	amount, err := e.DetectDissonance(a.ID, b.ID, 0.0)
	require.NoError(t, err)
	assert.Zero(t, amount, "agreement must never produce strain")
}

func TestDetectDissonanceMissingEntity(t *testing.T) {
	e := newTestEngine(t)
	real, _ := e.Store().CreateEntity("Real", graph.EntityConcept, "")

	_, err := e.DetectDissonance("ghost", real.ID, 0.0)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestApplyDissonance(t *testing.T) {
	e := newTestEngine(t)
	ent := mustCreate(t, e, "Sun", 0.3, 0.5)

	require.NoError(t, e.ApplyDissonance(ent.ID, 0.5))
	got, _ := e.Store().GetEntity(ent.ID)
	assert.InDelta(t, 0.8, got.Strain.Amplitude, 1e-9)

	// Clamped at 1.0.
	require.NoError(t, e.ApplyDissonance(ent.ID, 0.9))
	got, _ = e.Store().GetEntity(ent.ID)
	assert.Equal(t, 1.0, got.Strain.Amplitude)

	// Non-positive amounts are ignored.
	require.NoError(t, e.ApplyDissonance(ent.ID, 0))
	require.NoError(t, e.ApplyDissonance("ghost", 0))
	assert.ErrorIs(t, e.ApplyDissonance("ghost", 0.1), graph.ErrNotFound)
}

func TestQueryHighStrain(t *testing.T) {
	e := newTestEngine(t)
	high := mustCreate(t, e, "High", 0.9, 0.5)
	mustCreate(t, e, "Low", 0.2, 0.5)
	mustCreate(t, e, "Mid", 0.5, 0.5)

	res := e.QueryHighStrain(0.7)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, high.ID, res.Entities[0].ID)
	assert.Equal(t, 1, res.Summary.HighStrainCount)
	assert.InDelta(t, 0.9, res.Summary.AvgAmplitude, 1e-9)
}

func TestQueryLowStrain(t *testing.T) {
	e := newTestEngine(t)
	mustCreate(t, e, "High", 0.9, 0.5)
	low := mustCreate(t, e, "Low", 0.2, 0.5)

	res := e.QueryLowStrain(0.3)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, low.ID, res.Entities[0].ID)
	assert.Equal(t, 1, res.Summary.LowStrainCount)
}

func TestQueryByType(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Store().CreateEntity("Ada", graph.EntityPerson, "")
	require.NoError(t, err)
	_, err = e.Store().CreateEntity("Idea", graph.EntityConcept, "")
	require.NoError(t, err)

	res, err := e.QueryByType(graph.EntityPerson)
	require.NoError(t, err)
	assert.Len(t, res.Entities, 1)

	_, err = e.QueryByType(graph.EntityType("galaxy"))
	assert.ErrorIs(t, err, graph.ErrInvalidType)
}

func TestQuerySummaryCoversResultSetOnly(t *testing.T) {
	e := newTestEngine(t)
	mustCreate(t, e, "High", 0.9, 0.5)
	mustCreate(t, e, "Low", 0.1, 0.5)

	res := e.QueryHighStrain(0.5)
	// Only the high entity is in the set, so min == max == 0.9.
	assert.InDelta(t, 0.9, res.Summary.MinAmplitude, 1e-9)
	assert.InDelta(t, 0.9, res.Summary.MaxAmplitude, 1e-9)
	assert.Zero(t, res.Summary.LowStrainCount)
}

func TestQueryConnected(t *testing.T) {
	e := newTestEngine(t)
	a := mustCreate(t, e, "A", 0.0, 0.5)
	b := mustCreate(t, e, "B", 0.0, 0.5)
	c := mustCreate(t, e, "C", 0.0, 0.5)
	_, err := e.Store().CreateRelationship(a.ID, b.ID, "linked")
	require.NoError(t, err)
	_, err = e.Store().CreateRelationship(b.ID, c.ID, "linked")
	require.NoError(t, err)

	res, err := e.QueryConnected(a.ID, 1)
	require.NoError(t, err)
	assert.Len(t, res.Entities, 1)

	res, err = e.QueryConnected(a.ID, 2)
	require.NoError(t, err)
	assert.Len(t, res.Entities, 2)

	_, err = e.QueryConnected("ghost", 2)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestCombinedFilter(t *testing.T) {
	e := newTestEngine(t)

	ada, err := e.Store().CreateEntity("Ada", graph.EntityPerson, "")
	require.NoError(t, err)
	ada.Strain.Amplitude = 0.9
	require.NoError(t, e.Store().UpdateEntity(ada))

	idea := mustCreate(t, e, "Idea", 0.9, 0.5)
	mustCreate(t, e, "Faint Idea", 0.1, 0.5)

	ctx, err := e.Store().CreateContext("math", "")
	require.NoError(t, err)
	require.NoError(t, e.Store().AddEntityToContext(ctx.ID, idea.ID))

	// No predicates: everything matches.
	assert.Len(t, e.CombinedFilter(Filter{}).Entities, 3)

	// Type only.
	res := e.CombinedFilter(Filter{Types: []graph.EntityType{graph.EntityPerson}})
	require.Len(t, res.Entities, 1)
	assert.Equal(t, ada.ID, res.Entities[0].ID)

	// Threshold only.
	th := 0.5
	assert.Len(t, e.CombinedFilter(Filter{StrainThreshold: &th}).Entities, 2)

	// Context only.
	res = e.CombinedFilter(Filter{ContextIDs: []string{ctx.ID}})
	require.Len(t, res.Entities, 1)
	assert.Equal(t, idea.ID, res.Entities[0].ID)

	// Intersection of all three.
	res = e.CombinedFilter(Filter{
		Types:           []graph.EntityType{graph.EntityConcept},
		StrainThreshold: &th,
		ContextIDs:      []string{ctx.ID},
	})
	require.Len(t, res.Entities, 1)
	assert.Equal(t, idea.ID, res.Entities[0].ID)
}

func TestPropagateFacade(t *testing.T) {
	e := newTestEngine(t)
	a := mustCreate(t, e, "A", 0.0, 0.1)
	b := mustCreate(t, e, "B", 0.0, 0.1)
	_, err := e.Store().CreateRelationship(a.ID, b.ID, "linked")
	require.NoError(t, err)

	seed, _ := e.Store().GetEntity(a.ID)
	seed.Strain.Amplitude = 0.9
	require.NoError(t, e.Store().UpdateEntity(seed))

	deltas, err := e.Propagate(a.ID, 2)
	require.NoError(t, err)
	require.NotEmpty(t, deltas)
	assert.Equal(t, b.ID, deltas[0].EntityID)

	_, err = e.Propagate("ghost", 2)
	assert.ErrorIs(t, err, graph.ErrNotFound)
}

func TestPropagationInvalidatesScores(t *testing.T) {
	e := newTestEngine(t)
	a := mustCreate(t, e, "A", 0.0, 0.1)
	b := mustCreate(t, e, "B", 0.0, 0.1)
	_, err := e.Store().CreateRelationship(a.ID, b.ID, "linked")
	require.NoError(t, err)

	// Warm b's cache entry while both endpoints are at zero.
	before, err := e.ConfidenceScoreFor(b.ID)
	require.NoError(t, err)

	seed, _ := e.Store().GetEntity(a.ID)
	seed.Strain.Amplitude = 0.9
	require.NoError(t, e.Store().UpdateEntity(seed))

	_, err = e.Propagate(a.ID, 1)
	require.NoError(t, err)

	after, err := e.ConfidenceScoreFor(b.ID)
	require.NoError(t, err)
	assert.Greater(t, after.AmplitudeScore, before.AmplitudeScore)
}

func TestDecayPass(t *testing.T) {
	e := newTestEngine(t)
	ent := mustCreate(t, e, "Sun", 0.0, 0.5)
	require.NoError(t, e.Store().TouchEntity(ent.ID))

	// Fresh touch: nothing has elapsed, nothing decays.
	changed, err := e.DecayPass()
	require.NoError(t, err)
	assert.Zero(t, changed)
}

func TestNeighborFlowsAndInterference(t *testing.T) {
	e := newTestEngine(t)
	hub := mustCreate(t, e, "Hub", 0.0, 0.1)
	spokeA := mustCreate(t, e, "Spoke A", 0.0, 0.1)
	spokeB := mustCreate(t, e, "Spoke B", 0.0, 0.1)
	_, err := e.Store().CreateRelationship(hub.ID, spokeA.ID, "linked")
	require.NoError(t, err)
	_, err = e.Store().CreateRelationship(hub.ID, spokeB.ID, "linked")
	require.NoError(t, err)

	seed, _ := e.Store().GetEntity(hub.ID)
	seed.Strain.Amplitude = 0.9
	seed.Strain.Direction = strain.Vector{X: 1}
	require.NoError(t, e.Store().UpdateEntity(seed))

	flows, err := e.NeighborFlows(hub.ID)
	require.NoError(t, err)
	require.Len(t, flows, 2)
	for _, f := range flows {
		assert.Greater(t, f.Flow.Amount, 0.0)
	}

	// Both flows leave through the same direction hint, so they interfere.
	assert.Greater(t, MaxInterference(flows), 0.0)
	assert.Zero(t, MaxInterference(flows[:1]), "a single flow cannot interfere")

	_, err = e.NeighborFlows("ghost")
	assert.ErrorIs(t, err, graph.ErrNotFound)
}
