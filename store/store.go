// Package store persists the bonded-device registry the channel
// manager consults: bond state, stored device names, and the list of
// peers tracked for service-changed indications.
package store

import (
	"io/ioutil"
	"os"
	"strings"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	gattlink "github.com/veloxbt/gattlink"
)

// Device is one remote device record.
type Device struct {
	Address             string `json:"address"`
	Name                string `json:"name,omitempty"`
	Bonded              bool   `json:"bonded"`
	ServiceChangeClient bool   `json:"serviceChangeClient"`
}

type deviceFile struct {
	Devices []Device `json:"devices"`
}

// Store is a file-backed device registry. Safe for concurrent use.
type Store struct {
	filename string
	lock     sync.RWMutex
}

func New(filename string) *Store {
	return &Store{filename: filename}
}

// SaveDevice inserts or replaces the record for the device's address.
func (s *Store) SaveDevice(d Device) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	d.Address = strings.ToLower(d.Address)

	file, err := s.load()
	if err != nil {
		return err
	}

	replaced := false
	for i := range file.Devices {
		if file.Devices[i].Address == d.Address {
			file.Devices[i] = d
			replaced = true
			break
		}
	}
	if !replaced {
		file.Devices = append(file.Devices, d)
	}

	return s.save(file)
}

// Device returns the stored record for the address, if any.
func (s *Store) Device(addr string) (Device, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	file, err := s.load()
	if err != nil {
		return Device{}, false
	}
	for _, d := range file.Devices {
		if d.Address == strings.ToLower(addr) {
			return d, true
		}
	}
	return Device{}, false
}

// IsBonded reports whether the peer has a stored bond.
func (s *Store) IsBonded(peer gattlink.Addr) bool {
	d, ok := s.Device(peer.String())
	return ok && d.Bonded
}

// StoredName returns the device name recorded for the peer.
func (s *Store) StoredName(peer gattlink.Addr) (string, bool) {
	d, ok := s.Device(peer.String())
	if !ok || d.Name == "" {
		return "", false
	}
	return d.Name, true
}

// ServiceChangeClients lists the addresses tracked for
// service-changed indications.
func (s *Store) ServiceChangeClients() ([]string, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	file, err := s.load()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, d := range file.Devices {
		if d.ServiceChangeClient {
			out = append(out, d.Address)
		}
	}
	return out, nil
}

// AddServiceChangeClient marks the address as tracked. The device
// record is created if it does not exist yet.
func (s *Store) AddServiceChangeClient(addr string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	addr = strings.ToLower(addr)

	file, err := s.load()
	if err != nil {
		return err
	}

	for i := range file.Devices {
		if file.Devices[i].Address == addr {
			file.Devices[i].ServiceChangeClient = true
			return s.save(file)
		}
	}

	file.Devices = append(file.Devices, Device{
		Address:             addr,
		ServiceChangeClient: true,
	})
	return s.save(file)
}

func (s *Store) load() (*deviceFile, error) {
	if _, err := os.Stat(s.filename); os.IsNotExist(err) {
		return &deviceFile{}, nil
	}

	in, err := ioutil.ReadFile(s.filename)
	if err != nil {
		return nil, errors.Wrap(err, "read device store")
	}

	var file deviceFile
	if len(in) > 0 {
		if err := jsoniter.Unmarshal(in, &file); err != nil {
			return nil, errors.Wrap(err, "unmarshal device store")
		}
	}
	return &file, nil
}

func (s *Store) save(file *deviceFile) error {
	out, err := jsoniter.Marshal(file)
	if err != nil {
		return errors.Wrap(err, "marshal device store")
	}

	if err := ioutil.WriteFile(s.filename, out, 0644); err != nil {
		return errors.Wrap(err, "write device store")
	}
	return nil
}
