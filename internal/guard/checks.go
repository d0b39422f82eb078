package guard

import "context"

// NotAlreadyClaimed rejects claim() when the assignment is already claimed
// or complete. Always a HardBlock: there is no force override for claiming
// a task that is already spoken for.
var NotAlreadyClaimed = NewFunc("already_claimed", func(_ context.Context, gctx *Context) Result {
	switch gctx.AssignmentStatus {
	case "claimed", "complete":
		return Fail("already_claimed", HardBlock,
			"task "+gctx.TaskID+" is already "+gctx.AssignmentStatus,
			"release the task, or claim a different one",
		)
	default:
		return Pass("already_claimed")
	}
})

// MemoryNotPending aborts claim() when the task's Epic has unconsolidated
// agent logs, unless the caller forces through it.
var MemoryNotPending = NewFunc("pending_memory", func(_ context.Context, gctx *Context) Result {
	if !gctx.EpicMemoryPending {
		return Pass("pending_memory")
	}
	return Fail("pending_memory", SoftBlock,
		"epic "+gctx.EpicID+" has unconsolidated task logs",
		"run memory sync for "+gctx.EpicID+", or pass force to skip",
	)
})

// ClaimGuards is the ordered set run by claim().
var ClaimGuards = []Guard{NotAlreadyClaimed, MemoryNotPending}
