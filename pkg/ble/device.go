package ble

import (
	"context"
	"strings"

	"github.com/Krajiyah/ble-dht/pkg/dht"
	"github.com/go-ble/ble"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// reason reported with Disconnected when the link drops
const remoteUserTerminated uint8 = 0x13

// Start opens the HCI device, publishes every added service and advertises them
// under name until ctx is done. Registration calls fail with ErrCodeInvalidState afterwards.
func (s *GATTStack) Start(ctx context.Context, name string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.started {
		return dht.ErrCodeInvalidState
	}
	if err := s.methods.Stop(); err != nil {
		s.log.WithError(err).Debug("no previous device to stop")
	}
	if err := s.methods.SetDefaultDevice(s.deviceID, s.timeout); err != nil {
		return errors.Wrap(err, "SetDefaultDevice issue")
	}
	uuids := []ble.UUID{}
	for _, h := range s.order {
		svc := s.services[h]
		if err := s.methods.AddService(svc); err != nil {
			return errors.Wrap(err, "AddService issue")
		}
		uuids = append(uuids, svc.UUID)
	}
	s.started = true
	go func() {
		err := s.methods.AdvertiseNameAndServices(ctx, name, uuids...)
		if err != nil && errors.Cause(err) != context.Canceled && errors.Cause(err) != context.DeadlineExceeded {
			s.log.WithError(err).Error("advertising stopped")
		}
	}()
	s.log.WithFields(logrus.Fields{"name": name, "services": len(uuids)}).Info("advertising")
	return nil
}

// Stop releases the HCI device; pending event sends are dropped
func (s *GATTStack) Stop() error {
	s.once.Do(func() { close(s.done) })
	return s.methods.Stop()
}

func (s *GATTStack) touch(conn ble.Conn) dht.ConnHandle {
	return s.link(strings.ToUpper(conn.RemoteAddr().String()), conn.Disconnected())
}

// link returns the handle of the peer at addr, assigning one and raising Connected on first contact
func (s *GATTStack) link(addr string, disconnected <-chan struct{}) dht.ConnHandle {
	s.mutex.Lock()
	if h, ok := s.links[addr]; ok {
		s.mutex.Unlock()
		return h
	}
	h := s.nextConn
	s.nextConn++
	if s.nextConn == dht.ConnHandleInvalid {
		s.nextConn = 0
	}
	s.links[addr] = h
	s.live.Add(h)
	s.mutex.Unlock()

	s.log.WithFields(logrus.Fields{"conn": h, "peer": addr}).Info("connected")
	s.emit(dht.Connected{ConnHandle: h, PeerAddr: addr})
	go func() {
		select {
		case <-disconnected:
			s.unlink(addr, h)
		case <-s.done:
		}
	}()
	return h
}

func (s *GATTStack) unlink(addr string, h dht.ConnHandle) {
	s.mutex.Lock()
	delete(s.links, addr)
	s.live.Remove(h)
	for k := range s.notifiers {
		if k.conn == h {
			delete(s.notifiers, k)
		}
	}
	s.mutex.Unlock()
	s.log.WithFields(logrus.Fields{"conn": h, "peer": addr}).Info("disconnected")
	s.emit(dht.Disconnected{ConnHandle: h, Reason: remoteUserTerminated})
}

func (s *GATTStack) readHandler(entry *charEntry) func(ble.Request, ble.ResponseWriter) {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		s.touch(req.Conn())
		s.mutex.Lock()
		value := append([]byte(nil), entry.value...)
		perm := entry.perm
		s.mutex.Unlock()
		if perm == dht.SecModeNoAccess {
			rsp.SetStatus(ble.ErrReadNotPerm)
			return
		}
		if off := req.Offset(); off > 0 {
			if off > len(value) {
				rsp.SetStatus(ble.ErrInvalidOffset)
				return
			}
			value = value[off:]
		}
		rsp.Write(value)
	}
}

func (s *GATTStack) writeHandler(entry *charEntry) func(ble.Request, ble.ResponseWriter) {
	return func(req ble.Request, rsp ble.ResponseWriter) {
		conn := s.touch(req.Conn())
		data := append([]byte(nil), req.Data()...)
		if len(data) > entry.maxLen {
			rsp.SetStatus(ble.ErrInvalAttrValueLen)
			return
		}
		s.mutex.Lock()
		entry.value = data
		s.mutex.Unlock()
		s.emit(dht.CharacteristicWritten{ConnHandle: conn, Handle: entry.handles.Value, Data: data})
	}
}

// notifyHandler runs for as long as the peer keeps the subscription; go-ble calls it
// when the CCCD is written and cancels its context when the CCCD is cleared.
func (s *GATTStack) notifyHandler(entry *charEntry, kind dht.HVXType) func(ble.Request, ble.Notifier) {
	return func(req ble.Request, n ble.Notifier) {
		conn := s.touch(req.Conn())
		s.subscribe(conn, entry, kind, n)
		select {
		case <-n.Context().Done():
		case <-s.done:
		}
		s.unsubscribe(conn, entry, kind, n)
	}
}

func (s *GATTStack) subscribe(conn dht.ConnHandle, entry *charEntry, kind dht.HVXType, n ble.Notifier) {
	s.mutex.Lock()
	s.notifiers[notifierKey{conn, entry.handles.Value, kind}] = n
	s.mutex.Unlock()
	s.emit(dht.CharacteristicWritten{
		ConnHandle: conn,
		Handle:     entry.handles.CCCD,
		Data:       dht.CCCDValue(kind == dht.Notification, kind == dht.Indication),
	})
}

func (s *GATTStack) unsubscribe(conn dht.ConnHandle, entry *charEntry, kind dht.HVXType, n ble.Notifier) {
	key := notifierKey{conn, entry.handles.Value, kind}
	s.mutex.Lock()
	current, ok := s.notifiers[key]
	if !ok || current != n {
		s.mutex.Unlock()
		return
	}
	delete(s.notifiers, key)
	s.mutex.Unlock()
	s.emit(dht.CharacteristicWritten{ConnHandle: conn, Handle: entry.handles.CCCD, Data: dht.CCCDValue(false, false)})
}
