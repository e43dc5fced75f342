package io

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipelineWritesAllUnits(t *testing.T) {
	dir := t.TempDir()

	p := NewPipeline(4)
	for i := 0; i < 20; i++ {
		payload := []byte(fmt.Sprintf("tile-%02d", i))
		p.Submit(&WorkUnit{
			TargetPath: filepath.Join(dir, fmt.Sprintf("tile-%02d.b3dm", i)),
			Write: func(ws io.WriteSeeker) error {
				_, err := ws.Write(payload)
				return err
			},
		})
	}
	require.NoError(t, p.Close())

	for i := 0; i < 20; i++ {
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("tile-%02d.b3dm", i)))
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("tile-%02d", i), string(data))
	}
}

func TestPipelineReportsWriteError(t *testing.T) {
	dir := t.TempDir()
	boom := errors.New("boom")

	p := NewPipeline(2)
	p.Submit(&WorkUnit{
		TargetPath: filepath.Join(dir, "bad.b3dm"),
		Write: func(ws io.WriteSeeker) error {
			return boom
		},
	})
	for i := 0; i < 10; i++ {
		p.Submit(&WorkUnit{
			TargetPath: filepath.Join(dir, fmt.Sprintf("ok-%d.b3dm", i)),
			Write: func(ws io.WriteSeeker) error {
				_, err := ws.Write([]byte("ok"))
				return err
			},
		})
	}
	require.ErrorIs(t, p.Close(), boom)

	// the failed unit leaves no partial file behind
	_, err := os.Stat(filepath.Join(dir, "bad.b3dm"))
	require.True(t, os.IsNotExist(err))
}
