package cli

import "testing"

func TestRunAtExitRunsHandlersInRegistrationOrder(t *testing.T) {
	saved := atexitHandlers
	atexitHandlers = nil
	t.Cleanup(func() { atexitHandlers = saved })

	var order []int
	AtExit(func() { order = append(order, 1) })
	AtExit(func() { order = append(order, 2) })

	runAtExit()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("handlers ran in order %v, want [1 2]", order)
	}
}
