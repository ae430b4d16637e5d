package structured

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_RunsRegistrarsOnceAndSeals(t *testing.T) {
	calls := 0
	b := NewBuilder(RegistrarFunc(func(r *Registry) error {
		calls++
		return r.Register(newEncoder("gs", "parquet"), true)
	}))

	var wg sync.WaitGroup
	regs := make([]*Registry, 8)
	for i := range regs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reg, err := b.Build()
			assert.NoError(t, err)
			regs[i] = reg
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	for _, reg := range regs {
		assert.Same(t, regs[0], reg)
	}
	assert.True(t, regs[0].Sealed())
}

func TestBuilder_OverridesApplyAfterRegistrars(t *testing.T) {
	b := NewBuilder().
		Add(RegistrarFunc(func(r *Registry) error {
			if err := r.Register(newEncoder("gs", "parquet"), true); err != nil {
				return err
			}
			return r.Register(newEncoder("file", "csv"), false)
		})).
		Override(tableType, "FILE", "csv")

	reg, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "file", reg.DefaultProtocol(tableType))
	assert.Equal(t, "csv", reg.DefaultFormat(tableType))
}

func TestBuilder_RegistrarErrorIsSticky(t *testing.T) {
	boom := errors.New("bad plugin")
	calls := 0
	b := NewBuilder(RegistrarFunc(func(*Registry) error {
		calls++
		return boom
	}))

	_, err := b.Build()
	require.ErrorIs(t, err, boom)
	_, err = b.Build()
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestBuilder_DuplicateAcrossRegistrars(t *testing.T) {
	register := RegistrarFunc(func(r *Registry) error {
		return r.Register(newDecoder("gs", "parquet"), true)
	})
	_, err := NewBuilder(register, register).Build()
	require.ErrorIs(t, err, ErrDuplicateHandler)
}
