package world

// Both Replicate and Construct walk the data cursor, writing into the
// new-chain under construction, guarding against cycles and self-feeding
// writes with a pair of per-invocation id sets (§4.4).

// replicate implements the passive-mode (no nascent controller) constructor
// driver. It only runs when new_chain is present and no nascent controller
// is attached; otherwise it is a silent no-op, matching the reference's
// mode guard.
func (w *World) replicate(ctrl *Controller) {
	if !ctrl.NewChain.Present() || ctrl.NewController != nil {
		return
	}
	readSet := make(map[Uid]bool)
	newSet := make(map[Uid]bool)

	for {
		rid, ok := ctrl.Data[ctrl.IData].Get()
		if !ok {
			break
		}
		rnode, live := w.Arena.GetNode(Some(rid))
		if !live {
			break
		}
		if readSet[rid] {
			break
		}
		readSet[rid] = true
		if newSet[rid] {
			break
		}
		wid, ok := ctrl.NewChain.Get()
		if !ok {
			break
		}
		if _, live := w.Arena.GetNode(ctrl.NewChain); !live {
			break
		}

		ctrl.Data[ctrl.IData] = rnode.Next

		content := rnode.Content
		if w.rng.Float64() < w.PReplicate {
			content = w.randomContentByte()
			w.GlitchReplicateCount.Inc()
		}

		newID := w.Arena.AddNode(content)
		if nuid, ok := newID.Get(); ok {
			newSet[nuid] = true
		}

		wnode, live := w.Arena.GetNode(Some(wid))
		if !live {
			break
		}
		wnode.Next = newID
		w.Arena.SetNode(Some(wid), wnode)
		ctrl.NewChain = newID
	}
	ctrl.Flags.Success = true
}

// construct implements the active-mode (nascent controller attached)
// constructor driver, which additionally interprets Construction markers as
// a small stack machine over the ids written so far (§4.4).
func (w *World) construct(ctrl *Controller) {
	if !ctrl.NewChain.Present() || ctrl.NewController == nil {
		return
	}
	readSet := make(map[Uid]bool)
	newSet := make(map[Uid]bool)
	var stack []Uid
	altNextPending := false

	for {
		rid, ok := ctrl.Data[ctrl.IData].Get()
		if !ok {
			break
		}
		rnode, live := w.Arena.GetNode(Some(rid))
		if !live {
			break
		}
		if readSet[rid] {
			break
		}
		readSet[rid] = true
		if newSet[rid] {
			break
		}
		wid, ok := ctrl.NewChain.Get()
		if !ok {
			break
		}
		wnode, live := w.Arena.GetNode(Some(wid))
		if !live {
			break
		}

		ctrl.Data[ctrl.IData] = rnode.Next

		rawContent := rnode.Content
		if w.rng.Float64() < w.PConstruct {
			rawContent = w.randomContentByte()
			w.GlitchConstructCount.Inc()
		}
		content := decodeContent(rawContent)
		wcontent := decodeContent(wnode.Content)

		switch content.Kind {
		case KindSpace, KindBranch, KindCommand:
			newID := w.Arena.AddNode(rawContent)
			nuid, ok := newID.Get()
			if !ok {
				return
			}
			newSet[nuid] = true
			wnode, live = w.Arena.GetNode(Some(wid))
			if !live {
				return
			}
			if wcontent.Kind == KindBranch && altNextPending {
				wnode.AltNext = newID
				altNextPending = false
			} else {
				wnode.Next = newID
			}
			w.Arena.SetNode(Some(wid), wnode)
			ctrl.NewChain = newID

		case KindConstruction:
			switch content.Construction {
			case ConAltNext:
				altNextPending = true
			case ConDiscard:
				if len(stack) > 0 {
					stack = stack[:len(stack)-1]
				}
			case ConNextToStored:
				if len(stack) > 0 {
					top := stack[len(stack)-1]
					wnode, live = w.Arena.GetNode(Some(wid))
					if !live {
						return
					}
					if wcontent.Kind == KindBranch && altNextPending {
						wnode.AltNext = Some(top)
						altNextPending = false
					} else {
						wnode.Next = Some(top)
					}
					w.Arena.SetNode(Some(wid), wnode)
				}
			case ConRestore:
				if len(stack) > 0 {
					ctrl.NewChain = Some(stack[len(stack)-1])
				}
			case ConStore:
				stack = append(stack, wid)
			case ConSwap:
				if l := len(stack); l >= 2 {
					stack[l-1], stack[l-2] = stack[l-2], stack[l-1]
				}
			case ConTerminus:
				w.incConstruction(ConTerminus)
				ctrl.Flags.Success = true
				return
			}
			w.incConstruction(content.Construction)
		}
	}
	ctrl.Flags.Success = true
}

// randomContentByte draws a raw content byte uniformly from the 84-element
// content table (§4.2, §4.4, §4.3 group 5).
func (w *World) randomContentByte() uint8 {
	return encodeContent(contentTable[w.rng.Intn(len(contentTable))])
}
