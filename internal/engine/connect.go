package engine

import (
	"context"
	"fmt"

	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
	"dtg-replicator/internal/reconcile"
)

// connect establishes both plugin connections and refreshes each Source's
// cached Fields/AcceptUTF8/Status, the same probe-at-connect shape the
// validator depends on at startup (spec §4.1, §4.3).
func (e *Engine) connect(ctx context.Context) error {
	scm, err := connectSide(ctx, e.scmAdapter, e.Mapping.SCMSource)
	if err != nil {
		return fmt.Errorf("connect scm %s: %w", e.Mapping.SCMSource.Nickname, err)
	}
	e.scm = scm

	dts, err := connectSide(ctx, e.dtsAdapter, e.Mapping.DTSSource)
	if err != nil {
		e.scm.Handle.Close()
		return fmt.Errorf("connect dts %s: %w", e.Mapping.DTSSource.Nickname, err)
	}
	e.dts = dts

	e.scmBreaker.Reset()
	e.dtsBreaker.Reset()
	return nil
}

func connectSide(ctx context.Context, adapter plugin.Adapter, src *model.Source) (reconcile.Endpoint, error) {
	h, err := adapter.Connect(ctx, src.Server, src.User, src.Password, src.Attrs)
	if err != nil {
		return reconcile.Endpoint{}, err
	}
	proj, err := h.GetProject(ctx, src.Module)
	if err != nil {
		h.Close()
		return reconcile.Endpoint{}, fmt.Errorf("get project %s: %w", src.Module, err)
	}
	fields, err := proj.ListFields(ctx)
	if err != nil {
		h.Close()
		return reconcile.Endpoint{}, fmt.Errorf("list fields: %w", err)
	}
	src.Fields = fields
	src.Status = model.StatusPass
	src.Status = src.Ready()

	if ua, ok := adapter.(plugin.UTF8Aware); ok {
		if v, err := ua.AcceptUTF8(ctx, h); err == nil {
			src.AcceptUTF8 = v
		}
	}

	return reconcile.Endpoint{Adapter: adapter, Handle: h, Project: proj}, nil
}

// teardown closes both plugin handles, discarding the current Endpoint
// values (spec §5: "a connection reset creates a new handle and discards
// the old").
func (e *Engine) teardown() {
	if e.scm.Handle != nil {
		e.scm.Handle.Close()
	}
	if e.dts.Handle != nil {
		e.dts.Handle.Close()
	}
	e.scm = reconcile.Endpoint{}
	e.dts = reconcile.Endpoint{}
}
