package world

import "math/rand"

// Telemetry is the triplet a tick reports back to its caller (§4.2 step 6).
type Telemetry struct {
	ControllerId OptUid
	ExecId       OptUid
	ExecContent  uint8
}

// Tick performs one full interpreter step: polling collaborators, selecting
// and cloning a controller, decoding and dispatching its exec node,
// branching, writing back, aging the world, and rolling a background
// glitch (§4.2).
func (w *World) Tick(target OptUid) Telemetry {
	now := nowMicros()
	if w.rng == nil {
		// A world assembled outside NewWorld (such as by the save-format
		// loader) has no PRNG yet; seed one from the clock on first use.
		w.rng = rand.New(rand.NewSource(now))
	}
	if w.FileMap != nil {
		w.FileMap.Update(w.Ether, now)
	}
	if w.Peers != nil {
		w.Peers.Update(w.Ether, now)
	}

	var telemetry Telemetry

	if w.Arena.NumControllers() > 0 {
		cid := w.selectController(target)
		telemetry.ControllerId = cid

		if orig, ok := w.Arena.GetController(cid); ok {
			ctrl := orig.clone()
			telemetry.ExecId = ctrl.Exec

			node, live := w.Arena.GetNode(ctrl.Exec)
			if !live {
				w.Arena.RemoveController(cid)
			} else {
				telemetry.ExecContent = node.Content
				content := decodeContent(node.Content)

				nextExecForced := w.dispatch(ctrl, content)

				if !nextExecForced {
					if content.Kind == KindBranch {
						if ctrl.Flags.Success {
							ctrl.Exec = node.Next
							w.BranchesMainCount.Inc()
						} else {
							ctrl.Exec = node.AltNext
							w.BranchesAltCount.Inc()
						}
						ctrl.Flags.Success = true
					} else {
						ctrl.Exec = node.Next
					}
				}

				ctrl.Ticks.Inc()
				w.Arena.WriteBackController(cid, ctrl)
			}
		}
	}

	w.Age.Inc()
	if w.rng.Float64() < w.PBackground {
		if id := w.Arena.RandomNode(w.rng); id.Present() {
			if n, ok := w.Arena.GetNode(id); ok {
				n.Content = w.randomContentByte()
				w.Arena.SetNode(id, n)
				w.GlitchBackgroundCount.Inc()
			}
		}
	}

	return telemetry
}

// selectController resolves the caller's requested target, falling back to
// a uniformly random live controller when target is absent or no longer
// live.
func (w *World) selectController(target OptUid) OptUid {
	if target.Present() {
		if _, ok := w.Arena.GetController(target); ok {
			return target
		}
	}
	return w.Arena.RandomController(w.rng)
}

// Spawn installs a fresh controller whose program starts at chainStart (used
// by tests to seed a world without going through NewChainDetach).
func (w *World) Spawn(chainStart OptUid) OptUid {
	return w.Arena.AddController(NewController(chainStart))
}
