package hit

import (
	"testing"

	"github.com/fpsframework/firearm/internal/fx"
	"github.com/fpsframework/firearm/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shooter = Source{ID: "player-1", Name: "Player", FirearmID: "rifle"}

func request(c *Collider, damage float64) Request {
	return Request{
		Hit:       Hit{Collider: c, Point: core.Vec3{Z: 10}, Normal: core.Vec3{Z: -1}, Distance: 10},
		Source:    shooter,
		Damage:    damage,
		Direction: core.Forward,
	}
}

func TestResolve_AppliesDamage(t *testing.T) {
	pool := NewHealthPool(100)
	c := &Collider{ID: "dummy", Owner: "dummy", Health: pool}

	res, ok := Resolve(request(c, 20))
	require.True(t, ok)

	assert.Equal(t, 80.0, pool.Health())
	assert.Equal(t, 20.0, res.Damage)
	assert.Equal(t, 100.0, res.HealthBefore)
	assert.Equal(t, 80.0, res.HealthAfter)
	assert.False(t, res.Killed)
	assert.Equal(t, shooter, pool.LastSource)
}

func TestResolve_PartAndAttachmentMultipliers(t *testing.T) {
	pool := NewHealthPool(100)
	body := &Collider{ID: "body", Owner: "bot", Health: pool}
	head := &Collider{ID: "head", Parent: body, PartMultiplier: 2}

	req := request(head, 20)
	req.DamageModifier = 0.96
	res, ok := Resolve(req)
	require.True(t, ok)

	assert.InDelta(t, 38.4, res.Damage, 1e-9)
	assert.InDelta(t, 61.6, pool.Health(), 1e-9)
	assert.Equal(t, "bot", res.VictimID)
}

func TestResolve_KillsAndStopsAtZero(t *testing.T) {
	pool := NewHealthPool(10)
	c := &Collider{ID: "dummy", Health: pool}

	res, ok := Resolve(request(c, 25))
	require.True(t, ok)
	assert.True(t, res.Killed)
	assert.Equal(t, 0.0, pool.Health())
	assert.True(t, pool.DeadConfirmed())

	res, ok = Resolve(request(c, 25))
	require.True(t, ok)
	assert.False(t, res.Damaged)
	assert.Equal(t, 0.0, res.Damage)
}

func TestResolve_SelfHitHasNoEffect(t *testing.T) {
	pool := NewHealthPool(100)
	effects := fx.NewRecorder()
	c := &Collider{ID: "shooter-body", Owner: shooter.ID, Health: pool}

	req := request(c, 20)
	req.Decal = DecalConfig{Prefab: "hole"}
	req.Effects = effects
	_, ok := Resolve(req)

	assert.False(t, ok)
	assert.Equal(t, 100.0, pool.Health())
	assert.Empty(t, effects.Effects())
}

func TestResolve_IgnoredColliderHasNoEffect(t *testing.T) {
	pool := NewHealthPool(100)
	c := &Collider{ID: "trigger", Health: pool, IgnoreHitDetection: true}

	_, ok := Resolve(request(c, 20))
	assert.False(t, ok)
	assert.Equal(t, 100.0, pool.Health())
}

func TestResolve_DecalUsesCustomOverride(t *testing.T) {
	effects := fx.NewRecorder()
	wall := &Collider{ID: "wall"}
	glass := &Collider{ID: "glass", CustomDecal: "crack"}

	for _, c := range []*Collider{wall, glass} {
		req := request(c, 20)
		req.Decal = DecalConfig{Prefab: "bullet_hole", Size: 0.2}
		req.Effects = effects
		res, ok := Resolve(req)
		require.True(t, ok)
		assert.True(t, res.Decal)
	}

	got := effects.Effects()
	require.Len(t, got, 2)
	assert.Equal(t, "bullet_hole", got[0].Decal.Prefab)
	assert.Equal(t, "wall", got[0].Decal.ParentID)
	assert.Equal(t, 0.2, got[0].Decal.Size)
	assert.Equal(t, "crack", got[1].Decal.Prefab)
}

func TestResolve_AppliesImpulse(t *testing.T) {
	body := &Body{}
	c := &Collider{ID: "crate", Body: body}

	req := request(c, 0)
	req.Direction = core.Vec3{Z: 5}
	req.ImpactForce = 30
	res, ok := Resolve(req)
	require.True(t, ok)

	assert.True(t, res.Impulse)
	assert.Equal(t, core.Vec3{Z: 30}, body.Impulse)
	assert.Equal(t, 1, body.Pushes)
}

func TestResolve_ObserverScopes(t *testing.T) {
	root := &Collider{ID: "root", Health: NewHealthPool(100)}
	torso := &Collider{ID: "torso", Parent: root}
	arm := &Collider{ID: "arm", Parent: torso}

	var order []string
	record := func(name string) Observer {
		return ObserverFunc(func(e Event) { order = append(order, name+":"+e.Collider.ID) })
	}
	arm.Observe(record("arm-self"), ScopeSelf)
	torso.Observe(record("torso-self"), ScopeSelf)
	torso.Observe(record("torso-tree"), ScopeHierarchy)
	root.Observe(record("root-tree"), ScopeHierarchy)

	_, ok := Resolve(request(arm, 10))
	require.True(t, ok)

	assert.Equal(t, []string{"arm-self:arm", "torso-tree:arm", "root-tree:arm"}, order)
}
