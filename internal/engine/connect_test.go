package engine

import (
	"context"
	"errors"
	"testing"

	"dtg-replicator/internal/model"
	"dtg-replicator/internal/plugin"
	"dtg-replicator/internal/plugin/fake"
)

func TestConnectSidePopulatesSourceFieldsAndStatus(t *testing.T) {
	a := fake.New("p4", []model.FieldDesc{{Name: "Desc", Type: model.FieldText, Readonly: model.ReadWrite}})
	src := &model.Source{Kind: model.SCM, Nickname: "p4", ModDateField: "ModDate", ModUserField: "ModUser"}

	ep, err := connectSide(context.Background(), a, src)
	if err != nil {
		t.Fatalf("connectSide: %v", err)
	}
	if ep.Handle == nil || ep.Project == nil {
		t.Fatal("expected a populated Endpoint")
	}
	if len(src.Fields) != 1 || src.Fields[0].Name != "Desc" {
		t.Errorf("expected src.Fields to be populated from ListFields, got %+v", src.Fields)
	}
	if src.AcceptUTF8 != 1 {
		t.Errorf("expected AcceptUTF8 to be probed via UTF8Aware, got %d", src.AcceptUTF8)
	}
}

// failingConnectAdapter fails GetProject after a successful Connect, to
// exercise connectSide's handle-cleanup-on-error path.
type failingConnectAdapter struct {
	*fake.Adapter
	handle *failingHandle
}

func (f *failingConnectAdapter) Connect(ctx context.Context, server, user, pass string, attrs []model.Attr) (plugin.Handle, error) {
	f.handle = &failingHandle{Adapter: f.Adapter}
	return f.handle, nil
}

type failingHandle struct {
	*fake.Adapter
	closed bool
}

func (h *failingHandle) GetProject(ctx context.Context, name string) (plugin.Project, error) {
	return nil, errors.New("no such project")
}
func (h *failingHandle) Close() error {
	h.closed = true
	return nil
}

func TestConnectSideClosesHandleOnGetProjectError(t *testing.T) {
	inner := fake.New("p4", nil)
	a := &failingConnectAdapter{Adapter: inner}
	src := &model.Source{Kind: model.SCM, Nickname: "p4"}

	if _, err := connectSide(context.Background(), a, src); err == nil {
		t.Fatal("expected connectSide to surface the GetProject error")
	}
	if a.handle == nil || !a.handle.closed {
		t.Error("expected connectSide to close the handle after GetProject failed")
	}
}
