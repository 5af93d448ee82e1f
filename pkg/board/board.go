// Package board composes a simulated subbus board: the register
// address space served over CAN by a protocol engine.
package board

import (
	"github.com/robotalks/subbus/pkg/cancomm"
	fx "github.com/robotalks/subbus/pkg/framework"
	"github.com/robotalks/subbus/pkg/subbus"
)

// Board is a subbus board with its CAN engine.
type Board struct {
	Config  Config
	Bus     *subbus.Bus
	Engine  *cancomm.Engine
	Outputs Outputs
}

// AddToLoop implements framework.LoopAdder.
func (b *Board) AddToLoop(loop *fx.Loop) {
	loop.Add(b.Bus, b.Engine)
}

// Fail returns the current fail register value.
func (b *Board) Fail() uint16 {
	for _, drv := range b.Bus.Drivers() {
		if w := drv.Word(subbus.FailAddr); w != nil {
			return w.Value
		}
	}
	return 0
}
