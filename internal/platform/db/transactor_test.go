package db

import (
	"context"
	"errors"
	"testing"
)

func TestUndoTransactor_RollsBackNewestFirst(t *testing.T) {
	var order []string
	boom := errors.New("boom")

	err := UndoTransactor{}.InTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { order = append(order, "first") })
		OnRollback(ctx, func() { order = append(order, "second") })
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() error = %v, want %v", err, boom)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("undo order = %v, want [second first]", order)
	}
}

func TestUndoTransactor_CommitDiscardsSteps(t *testing.T) {
	ran := false
	err := UndoTransactor{}.InTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { ran = true })
		return nil
	})
	if err != nil {
		t.Fatalf("InTx() error: %v", err)
	}
	if ran {
		t.Error("undo step ran after a successful transaction")
	}
}

func TestUndoTransactor_NestedJoinsOuter(t *testing.T) {
	var undone []string
	tx := UndoTransactor{}
	err := tx.InTx(context.Background(), func(ctx context.Context) error {
		OnRollback(ctx, func() { undone = append(undone, "outer") })
		if err := tx.InTx(ctx, func(ctx context.Context) error {
			OnRollback(ctx, func() { undone = append(undone, "inner") })
			return nil
		}); err != nil {
			return err
		}
		return errors.New("late failure")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(undone) != 2 || undone[0] != "inner" {
		t.Errorf("undone = %v, want [inner outer]", undone)
	}
}

func TestOnRollback_OutsideTransaction(t *testing.T) {
	// no transaction on ctx: the step is dropped and nothing panics
	OnRollback(context.Background(), func() { t.Error("undo step ran") })
}
