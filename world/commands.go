package world

// dispatch executes content against ctrl and returns whether cursor
// advancement should be suppressed (true only for an enabled
// GetExecFromOptuid, which has already overwritten ctrl.Exec itself).
//
// Command content resets ctrl.Flags.Success to false first (the
// "pessimistic default"); Space, Branch and Construction content run no
// command at all and leave flags.success exactly as the previous tick left
// it, matching the reference dispatcher.
func (w *World) dispatch(ctrl *Controller, content Content) (nextExecForced bool) {
	if content.Kind != KindCommand {
		return false
	}
	cmd := content.Command
	ctrl.Flags.Success = false

	if !w.CommandSwitch.Enabled(cmd) {
		ctrl.Flags.Success = true
		return false
	}

	nextExecForced = w.runCommand(ctrl, cmd)
	w.incCommand(cmd)
	return nextExecForced
}

func (w *World) runCommand(ctrl *Controller, cmd Command) (nextExecForced bool) {
	switch cmd {

	// Group 1: integer ALU.
	case CmdAbs:
		r, fits := absInt64(ctrl.Registers.Integer)
		ctrl.Registers.Integer = r
		ctrl.Flags.Success = fits
	case CmdAdd:
		r, fits := addInt128(ctrl.Registers.Integer, ctrl.Integers[ctrl.IInteger])
		ctrl.Registers.Integer = r
		ctrl.Flags.Success = fits
	case CmdSubtract:
		r, fits := subInt128(ctrl.Registers.Integer, ctrl.Integers[ctrl.IInteger])
		ctrl.Registers.Integer = r
		ctrl.Flags.Success = fits
	case CmdMultiply:
		r, fits := mulInt128(ctrl.Registers.Integer, ctrl.Integers[ctrl.IInteger])
		ctrl.Registers.Integer = r
		ctrl.Flags.Success = fits
	case CmdDivide:
		if d := ctrl.Integers[ctrl.IInteger]; d != 0 {
			r, fits := quoInt128(ctrl.Registers.Integer, d)
			ctrl.Registers.Integer = r
			ctrl.Flags.Success = fits
		}
	case CmdRemainder:
		if d := ctrl.Integers[ctrl.IInteger]; d != 0 {
			ctrl.Registers.Integer %= d
			ctrl.Flags.Success = true
		}
	case CmdNegate:
		r, fits := subInt128(0, ctrl.Registers.Integer)
		ctrl.Registers.Integer = r
		ctrl.Flags.Success = fits
	case CmdSign:
		switch {
		case ctrl.Registers.Integer > 0:
			ctrl.Registers.Integer = 1
		case ctrl.Registers.Integer < 0:
			ctrl.Registers.Integer = -1
		default:
			ctrl.Registers.Integer = 0
		}
		ctrl.Flags.Success = true
	case CmdSquare:
		r, fits := mulInt128(ctrl.Registers.Integer, ctrl.Registers.Integer)
		ctrl.Registers.Integer = r
		ctrl.Flags.Success = fits
	case CmdIncrement:
		r, fits := addInt128(ctrl.Registers.Integer, 1)
		ctrl.Registers.Integer = r
		ctrl.Flags.Success = fits
	case CmdDecrement:
		r, fits := subInt128(ctrl.Registers.Integer, 1)
		ctrl.Registers.Integer = r
		ctrl.Flags.Success = fits
	case CmdShiftUp:
		ctrl.Registers.Integer <<= 1
		ctrl.Flags.Success = true
	case CmdShiftDown:
		ctrl.Registers.Integer >>= 1
		ctrl.Flags.Success = true
	case CmdBitAnd:
		ctrl.Registers.Integer &= ctrl.Integers[ctrl.IInteger]
		ctrl.Flags.Success = true
	case CmdBitOr:
		ctrl.Registers.Integer |= ctrl.Integers[ctrl.IInteger]
		ctrl.Flags.Success = true
	case CmdBitXor:
		ctrl.Registers.Integer ^= ctrl.Integers[ctrl.IInteger]
		ctrl.Flags.Success = true
	case CmdBitNot:
		ctrl.Registers.Integer = ^ctrl.Registers.Integer
		ctrl.Flags.Success = true
	case CmdZeroInteger:
		ctrl.Registers.Integer = 0
		ctrl.Flags.Success = true

	// Group 2: register moves.
	case CmdGetIntegerFromIntegers:
		ctrl.Registers.Integer = ctrl.Integers[ctrl.IInteger]
		ctrl.Flags.Success = true
	case CmdSetIntegersFromInteger:
		ctrl.Integers[ctrl.IInteger] = ctrl.Registers.Integer
		ctrl.Flags.Success = true
	case CmdIntegerToSuccess:
		ctrl.Flags.Success = ctrl.Registers.Integer&1 != 0
	case CmdSuccessToInteger:
		ctrl.Registers.Integer = boolToInteger(ctrl.Flags.Success)
		ctrl.Flags.Success = true
	case CmdOptuidIndexToInteger:
		ctrl.Registers.Integer = Integer(ctrl.IOptuid)
		ctrl.Flags.Success = true
	case CmdIntegerToOptuidIndex:
		if i, ok := indexFromRegister(ctrl.Registers.Integer, NumCtrlOptuids); ok {
			ctrl.IOptuid = i
			ctrl.Flags.Success = true
		}
	case CmdIntegerIndexToInteger:
		ctrl.Registers.Integer = Integer(ctrl.IInteger)
		ctrl.Flags.Success = true
	case CmdIntegerToIntegerIndex:
		if i, ok := indexFromRegister(ctrl.Registers.Integer, NumCtrlIntegers); ok {
			ctrl.IInteger = i
			ctrl.Flags.Success = true
		}
	case CmdDataOptuidIndexToInteger:
		ctrl.Registers.Integer = Integer(ctrl.IData)
		ctrl.Flags.Success = true
	case CmdIntegerToDataOptuidIndex:
		if i, ok := indexFromRegister(ctrl.Registers.Integer, NumCtrlDataOptuids); ok {
			ctrl.IData = i
			ctrl.Flags.Success = true
		}
	case CmdOptuidChannelToInteger:
		ctrl.Registers.Integer = Integer(ctrl.OptuidChannels[ctrl.IOptuidChannel])
		ctrl.Flags.Success = true
	case CmdIntegerToOptuidChannel:
		if i, ok := indexFromRegister(ctrl.Registers.Integer, NumOptuidChannels); ok {
			ctrl.OptuidChannels[ctrl.IOptuidChannel] = i
			ctrl.Flags.Success = true
		}
	case CmdIntegerChannelToInteger:
		ctrl.Registers.Integer = Integer(ctrl.IntegerChannels[ctrl.IIntegerChannel])
		ctrl.Flags.Success = true
	case CmdIntegerToIntegerChannel:
		if ctrl.Registers.Integer >= 0 {
			ctrl.IntegerChannels[ctrl.IIntegerChannel] = int(ctrl.Registers.Integer)
			ctrl.Flags.Success = true
		}
	case CmdPeerToInteger:
		ctrl.Registers.Integer = Integer(ctrl.IPeer)
		ctrl.Flags.Success = true
	case CmdIntegerToPeer:
		if i, ok := indexFromRegister(ctrl.Registers.Integer, len(w.Peers.Others)+1); ok {
			ctrl.IPeer = i
			ctrl.Flags.Success = true
		}
	case CmdSetOptuidFromDataOptuid:
		ctrl.Optuids[ctrl.IOptuid] = ctrl.Data[ctrl.IData]
		ctrl.Flags.Success = true
	case CmdSetDataOptuidFromOptuid:
		ctrl.Data[ctrl.IData] = ctrl.Optuids[ctrl.IOptuid]
		ctrl.Flags.Success = true

	// Group 3: cursor advancement.
	case CmdNextDataOptuid:
		ctrl.Flags.Success = stepUp(&ctrl.IData, NumCtrlDataOptuids)
	case CmdPreviousDataOptuid:
		ctrl.Flags.Success = stepDown(&ctrl.IData)
	case CmdNextInteger:
		ctrl.Flags.Success = stepUp(&ctrl.IInteger, NumCtrlIntegers)
	case CmdPreviousInteger:
		ctrl.Flags.Success = stepDown(&ctrl.IInteger)
	case CmdNextIntegerChannel:
		ctrl.Flags.Success = stepUp(&ctrl.IIntegerChannel, NumCtrlIntegerChannels)
	case CmdPreviousIntegerChannel:
		ctrl.Flags.Success = stepDown(&ctrl.IIntegerChannel)
	case CmdNextOptuid:
		ctrl.Flags.Success = stepUp(&ctrl.IOptuid, NumCtrlOptuids)
	case CmdPreviousOptuid:
		ctrl.Flags.Success = stepDown(&ctrl.IOptuid)
	case CmdNextOptuidChannel:
		ctrl.Flags.Success = stepUp(&ctrl.IOptuidChannel, NumCtrlOptuidChannels)
	case CmdPreviousOptuidChannel:
		ctrl.Flags.Success = stepDown(&ctrl.IOptuidChannel)
	case CmdNextPeer:
		ctrl.Flags.Success = stepUp(&ctrl.IPeer, len(w.Peers.Others)+1)
	case CmdPreviousPeer:
		ctrl.Flags.Success = stepDown(&ctrl.IPeer)

	// Group 4: tests.
	case CmdTestIntegerNegative:
		ctrl.Flags.Success = ctrl.Registers.Integer < 0
	case CmdTestIntegerNonZero:
		ctrl.Flags.Success = ctrl.Registers.Integer != 0
	case CmdTestIntegerPositive:
		ctrl.Flags.Success = ctrl.Registers.Integer > 0
	case CmdTestDataOptuid:
		if rid, ok := ctrl.Data[ctrl.IData].Get(); ok {
			_, live := w.Arena.GetNode(Some(rid))
			ctrl.Flags.Success = live
		}

	// Group 5: randomness.
	case CmdRandomInteger:
		ctrl.Registers.Integer = int64(w.rng.Uint64())
		ctrl.Flags.Success = true
	case CmdRandomContent:
		ctrl.Registers.Integer = Integer(w.randomContentByte())
		ctrl.Flags.Success = true

	// Group 6: data-cursor node ops.
	case CmdRead:
		if n, ok := w.dataNode(ctrl); ok {
			ctrl.Registers.Integer = Integer(n.Content)
			ctrl.Data[ctrl.IData] = n.Next
			ctrl.Flags.Success = true
		}
	case CmdWrite:
		if n, ok := w.dataNode(ctrl); ok {
			n.Content = uint8(ctrl.Registers.Integer)
			w.Arena.SetNode(ctrl.Data[ctrl.IData], n)
			ctrl.Data[ctrl.IData] = n.Next
			ctrl.Flags.Success = true
		}
	case CmdSkip:
		if n, ok := w.dataNode(ctrl); ok {
			ctrl.Data[ctrl.IData] = n.Next
			ctrl.Flags.Success = true
		}
	case CmdInsert:
		w.cmdInsert(ctrl)
	case CmdRemove:
		w.cmdRemove(ctrl)

	// Group 7: peer / ether.
	case CmdTransmitInteger:
		if ctrl.IPeer == 0 {
			chan_ := ctrl.IntegerChannels[ctrl.IIntegerChannel]
			if chan_ >= 0 && chan_ < len(w.Ether.Integers) {
				w.Ether.Integers[chan_] = ctrl.Registers.Integer
				ctrl.Flags.Success = true
			}
		}
	case CmdReceiveInteger:
		chan_ := ctrl.IntegerChannels[ctrl.IIntegerChannel]
		if ctrl.IPeer == 0 {
			if chan_ >= 0 && chan_ < len(w.Ether.Integers) {
				ctrl.Registers.Integer = w.Ether.Integers[chan_]
				ctrl.Flags.Success = true
			}
		} else if ctrl.IPeer <= len(w.Peers.Others) {
			other := w.Peers.Others[ctrl.IPeer-1]
			if chan_ >= 0 && chan_ < len(other.EtherIntegers) {
				ctrl.Registers.Integer = other.EtherIntegers[chan_]
				ctrl.Flags.Success = true
			}
		}
	case CmdTransmitOptuid:
		w.Ether.Optuids[ctrl.OptuidChannels[ctrl.IOptuidChannel]] = ctrl.Optuids[ctrl.IOptuid]
		ctrl.Flags.Success = true
	case CmdReceiveOptuid:
		if id := w.Ether.Optuids[ctrl.OptuidChannels[ctrl.IOptuidChannel]]; id.Present() {
			ctrl.Optuids[ctrl.IOptuid] = id
			ctrl.Flags.Success = true
		}

	// Group 8: new-chain construction driver.
	case CmdNewChainInitPassive:
		if id := w.Arena.AddNode(encodeContent(SpaceContent)); id.Present() {
			ctrl.NewChain = id
			ctrl.Optuids[ctrl.IOptuid] = id
			ctrl.Flags.Success = true
		}
	case CmdNewChainInitActive:
		if id := w.Arena.AddNode(encodeContent(SpaceContent)); id.Present() {
			ctrl.NewChain = id
			ctrl.Optuids[ctrl.IOptuid] = id
			nc := NewController(id)
			ctrl.NewController = nc
			ctrl.Flags.Success = true
		}
	case CmdNewChainAddOptuid:
		if nc := ctrl.NewController; nc != nil {
			nc.Optuids[nc.IOptuid] = ctrl.Optuids[ctrl.IOptuid]
			nc.IOptuid = (nc.IOptuid + 1) % NumCtrlOptuids
			ctrl.Flags.Success = true
		}
	case CmdNewChainAddInteger:
		if nc := ctrl.NewController; nc != nil {
			nc.Integers[nc.IInteger] = ctrl.Registers.Integer
			nc.IInteger = (nc.IInteger + 1) % NumCtrlIntegers
			ctrl.Flags.Success = true
		}
	case CmdNewChainAddOptuidChannel:
		if nc := ctrl.NewController; nc != nil {
			nc.OptuidChannels[nc.IOptuidChannel] = ctrl.OptuidChannels[ctrl.IOptuidChannel]
			nc.IOptuidChannel = (nc.IOptuidChannel + 1) % NumCtrlOptuidChannels
			ctrl.Flags.Success = true
		}
	case CmdNewChainAddIntegerChannel:
		if nc := ctrl.NewController; nc != nil {
			nc.IntegerChannels[nc.IIntegerChannel] = ctrl.IntegerChannels[ctrl.IIntegerChannel]
			nc.IIntegerChannel = (nc.IIntegerChannel + 1) % NumCtrlIntegerChannels
			ctrl.Flags.Success = true
		}
	case CmdNewChainDetach:
		if ctrl.NewChain.Present() {
			ctrl.NewChain = Absent
			if nc := ctrl.NewController; nc != nil {
				nc.Exec = nc.ChainStart
				nc.IOptuid = 0
				nc.IInteger = 0
				nc.IOptuidChannel = 0
				nc.IIntegerChannel = 0
				nc.Generation = ctrl.Generation
				nc.Generation.Inc()
				w.Arena.AddController(nc)
				ctrl.NewController = nil
			}
			ctrl.Flags.Success = true
		}
	case CmdReplicate:
		w.replicate(ctrl)
	case CmdConstruct:
		w.construct(ctrl)

	// Group 9: control.
	case CmdGetExecFromOptuid:
		ctrl.Exec = ctrl.Optuids[ctrl.IOptuid]
		nextExecForced = true
		ctrl.Flags.Success = true
	case CmdSetOptuidFromExec:
		ctrl.Optuids[ctrl.IOptuid] = ctrl.Exec
		ctrl.Flags.Success = true
	case CmdRestart:
		ctrl.restart()
	}
	return nextExecForced
}

// dataNode resolves the node at the current data cursor, if live.
func (w *World) dataNode(ctrl *Controller) (Node, bool) {
	return w.Arena.GetNode(ctrl.Data[ctrl.IData])
}

func (w *World) cmdInsert(ctrl *Controller) {
	target := ctrl.Data[ctrl.IData]
	tnode, live := w.Arena.GetNode(target)
	if !live {
		return
	}
	oldNext := tnode.Next
	newID := w.Arena.AddNodeAfter(uint8(ctrl.Registers.Integer), target)
	if !newID.Present() {
		return
	}
	nn, live := w.Arena.GetNode(newID)
	if !live {
		return
	}
	nn.Next = oldNext
	w.Arena.SetNode(newID, nn)
	ctrl.Data[ctrl.IData] = newID
	ctrl.Flags.Success = true
}

func (w *World) cmdRemove(ctrl *Controller) {
	target := ctrl.Data[ctrl.IData]
	tnode, live := w.Arena.GetNode(target)
	if !live {
		return
	}
	next := tnode.Next
	w.Arena.RemoveNode(target)
	ctrl.Data[ctrl.IData] = next
	ctrl.Flags.Success = false
}

func boolToInteger(b bool) Integer {
	if b {
		return 1
	}
	return 0
}

// indexFromRegister bounds-checks register against [0, limit).
func indexFromRegister(register Integer, limit int) (int, bool) {
	if register < 0 || register >= Integer(limit) {
		return 0, false
	}
	return int(register), true
}

// stepUp advances *idx by one, saturating at limit-1 and reporting failure
// if the step would have gone out of range.
func stepUp(idx *int, limit int) bool {
	*idx++
	if *idx < limit {
		return true
	}
	*idx--
	return false
}

// stepDown steps *idx back by one, succeeding only if it was positive.
func stepDown(idx *int) bool {
	if *idx > 0 {
		*idx--
		return true
	}
	return false
}

func absInt64(a int64) (int64, bool) {
	if a == minInt64 {
		return a, false
	}
	if a < 0 {
		return -a, true
	}
	return a, true
}

const minInt64 = -1 << 63
