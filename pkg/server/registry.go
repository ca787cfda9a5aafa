package server

import (
	"log/slog"

	"github.com/nordlicht/goudsstack/pkg/event"
)

// DIDReader copies the current value of a data identifier into w.
type DIDReader func(w *event.Writer) event.NRC

// DIDWriter stores data written to a data identifier.
type DIDWriter func(data []byte) event.NRC

// RoutineHandler implements every RoutineControl subfunction for one
// routine identifier.
type RoutineHandler func(sub uint8, optionData []byte, w *event.Writer) event.NRC

// didExtension pairs a DID's read and write callbacks, mirroring the
// teacher's od.Entry.AddExtension(object, read, write) shape.
type didExtension struct {
	read  DIDReader
	write DIDWriter
}

// Registry is an optional layer on top of event.Handler: it lets
// callers attach a handler to one data identifier or routine instead of
// writing a single large switch over event.Kind, the same way the
// teacher's object dictionary lets callers attach a read/write
// extension to one entry instead of touching the whole dictionary.
type Registry struct {
	logger   *slog.Logger
	dids     map[uint16]didExtension
	routines map[uint16]RoutineHandler
	fallback event.Handler
}

// NewRegistry constructs an empty Registry. fallback, if non-nil,
// receives every event with no specific handler: Custom, session,
// security, transfer and scheduling events, plus unregistered DIDs and
// routines.
func NewRegistry(logger *slog.Logger, fallback event.Handler) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:   logger.With("component", "registry"),
		dids:     make(map[uint16]didExtension),
		routines: make(map[uint16]RoutineHandler),
		fallback: fallback,
	}
}

// AddDataIdentifier attaches read and/or write behavior to did. Either
// callback may be nil to leave that direction unsupported.
func (r *Registry) AddDataIdentifier(did uint16, read DIDReader, write DIDWriter) {
	r.logger.Debug("added data identifier extension", "did", did)
	r.dids[did] = didExtension{read: read, write: write}
}

// AddRoutine attaches a handler for one RoutineControl routine
// identifier, covering all three subfunctions (start/stop/requestResults).
func (r *Registry) AddRoutine(routineID uint16, handler RoutineHandler) {
	r.logger.Debug("added routine extension", "routine", routineID)
	r.routines[routineID] = handler
}

// Handle implements event.Handler.
func (r *Registry) Handle(ev event.Event) event.NRC {
	switch ev.Kind {
	case event.KindReadDataByIdent:
		return r.handleRead(ev.ReadDataByIdent)
	case event.KindWriteDataByIdent:
		return r.handleWrite(ev.WriteDataByIdent)
	case event.KindRoutineCtrl:
		return r.handleRoutine(ev.RoutineCtrl)
	default:
		if r.fallback != nil {
			return r.fallback(ev)
		}
		return event.NRCGeneralReject
	}
}

func (r *Registry) handleRead(args *event.ReadDataByIdentArgs) event.NRC {
	ext, ok := r.dids[args.DID]
	if !ok || ext.read == nil {
		if r.fallback != nil {
			return r.fallback(event.Event{Kind: event.KindReadDataByIdent, ReadDataByIdent: args})
		}
		return event.NRCRequestOutOfRange
	}
	return ext.read(args.Writer)
}

func (r *Registry) handleWrite(args *event.WriteDataByIdentArgs) event.NRC {
	ext, ok := r.dids[args.DID]
	if !ok || ext.write == nil {
		if r.fallback != nil {
			return r.fallback(event.Event{Kind: event.KindWriteDataByIdent, WriteDataByIdent: args})
		}
		return event.NRCRequestOutOfRange
	}
	return ext.write(args.Data)
}

func (r *Registry) handleRoutine(args *event.RoutineCtrlArgs) event.NRC {
	handler, ok := r.routines[args.RoutineID]
	if !ok {
		if r.fallback != nil {
			return r.fallback(event.Event{Kind: event.KindRoutineCtrl, RoutineCtrl: args})
		}
		return event.NRCRequestOutOfRange
	}
	return handler(args.SubFunction, args.OptionData, args.Writer)
}
