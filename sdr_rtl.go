package main

// #cgo pkg-config: librtlsdr
//
// #include <stdint.h>
// #include <stdlib.h>
// #include <rtl-sdr.h>
//
// extern void goRtlsdrCallback(unsigned char *buf, uint32_t len, void *ctx);
import "C"

import (
	"fmt"
	"sync"
	"unsafe"
)

// rtlDevice wraps one open RTL-SDR dongle. It implements both SDRControl
// and SDRReader: the underlying librtlsdr handle is single-owner (spec
// §4.1, "the hardware handle is never shared"), but that owner is split
// across the two tasks' interfaces the same way rtlsdr_mt splits `control`
// and `reader` from one `open()` call.
//
// Ground: other_examples/bc5a330e_hztools-go-sdr__rtl-rtlsdr.go.go (cgo
// shape, rtlsdr_* call wrapping) and
// other_examples/ee8ce340_saviobatista-go1090__rtlsdr.go.go (async read
// callback wiring).
type rtlDevice struct {
	mu     sync.Mutex
	handle *C.rtlsdr_dev_t
}

// rtlCallbacks maps a C-visible context pointer to the Go callback it
// should invoke; cgo cannot pass a Go closure through a C function
// pointer, so we register by integer key instead.
var (
	rtlCallbacksMu sync.Mutex
	rtlCallbacks   = map[uintptr]func([]byte){}
	rtlNextKey     uintptr
)

// OpenRTLSDR opens the RTL-SDR at the given device index and configures
// sample rate and PPM correction, returning the control and reader halves.
func OpenRTLSDR(index uint, sampleRate uint32, ppm int) (SDRControl, SDRReader, error) {
	var handle *C.rtlsdr_dev_t
	if rv := C.rtlsdr_open(&handle, C.uint32_t(index)); rv != 0 {
		return nil, nil, fmt.Errorf("rtlsdr: open index %d: rc=%d", index, int(rv))
	}

	dev := &rtlDevice{handle: handle}

	if rv := C.rtlsdr_set_sample_rate(handle, C.uint32_t(sampleRate)); rv != 0 {
		dev.Close()
		return nil, nil, fmt.Errorf("rtlsdr: set sample rate %d: rc=%d", sampleRate, int(rv))
	}
	// A freshly opened device already has a correction of 0, and librtlsdr
	// rejects setting the value it already holds, so 0 is left as is.
	if ppm != 0 {
		if rv := C.rtlsdr_set_freq_correction(handle, C.int(ppm)); rv != 0 {
			dev.Close()
			return nil, nil, fmt.Errorf("rtlsdr: set ppm %d: rc=%d", ppm, int(rv))
		}
	}
	if rv := C.rtlsdr_reset_buffer(handle); rv != 0 {
		dev.Close()
		return nil, nil, fmt.Errorf("rtlsdr: reset buffer: rc=%d", int(rv))
	}

	return dev, dev, nil
}

// ListRTLSDRDevices enumerates attached dongles, for --device list.
func ListRTLSDRDevices() []DeviceInfo {
	count := uint(C.rtlsdr_get_device_count())
	out := make([]DeviceInfo, 0, count)

	for i := uint(0); i < count; i++ {
		name := C.GoString(C.rtlsdr_get_device_name(C.uint32_t(i)))
		out = append(out, DeviceInfo{Index: i, Name: name})
	}

	return out
}

func (d *rtlDevice) SetCenterFrequency(f Frequency) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rv := C.rtlsdr_set_center_freq(d.handle, C.uint32_t(f)); rv != 0 {
		return fmt.Errorf("rtlsdr: set center freq %d: rc=%d", uint32(f), int(rv))
	}
	return nil
}

func (d *rtlDevice) SetPPM(ppm int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rv := C.rtlsdr_set_freq_correction(d.handle, C.int(ppm)); rv != 0 {
		return fmt.Errorf("rtlsdr: set ppm: rc=%d", int(rv))
	}
	return nil
}

func (d *rtlDevice) SetGainTenthsDB(gain int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rv := C.rtlsdr_set_tuner_gain_mode(d.handle, 1); rv != 0 {
		return fmt.Errorf("rtlsdr: enable manual gain: rc=%d", int(rv))
	}
	if rv := C.rtlsdr_set_tuner_gain(d.handle, C.int(gain)); rv != 0 {
		return fmt.Errorf("rtlsdr: set gain %d: rc=%d", gain, int(rv))
	}
	return nil
}

func (d *rtlDevice) EnableAGC() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rv := C.rtlsdr_set_tuner_gain_mode(d.handle, 0); rv != 0 {
		return fmt.Errorf("rtlsdr: enable agc: rc=%d", int(rv))
	}
	if rv := C.rtlsdr_set_agc_mode(d.handle, 1); rv != 0 {
		return fmt.Errorf("rtlsdr: enable agc mode: rc=%d", int(rv))
	}
	return nil
}

func (d *rtlDevice) CancelAsync() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if rv := C.rtlsdr_cancel_async(d.handle); rv != 0 {
		return fmt.Errorf("rtlsdr: cancel async: rc=%d", int(rv))
	}
	return nil
}

func (d *rtlDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.handle == nil {
		return nil
	}
	rv := C.rtlsdr_close(d.handle)
	d.handle = nil
	if rv != 0 {
		return fmt.Errorf("rtlsdr: close: rc=%d", int(rv))
	}
	return nil
}

//export goRtlsdrCallback
func goRtlsdrCallback(buf *C.uchar, length C.uint32_t, ctx unsafe.Pointer) {
	key := uintptr(ctx)

	rtlCallbacksMu.Lock()
	cb, ok := rtlCallbacks[key]
	rtlCallbacksMu.Unlock()
	if !ok {
		return
	}

	iq := C.GoBytes(unsafe.Pointer(buf), C.int(length))
	cb(iq)
}

// ReadAsync blocks invoking cb for each IQ block until CancelAsync/Close
// unblocks the underlying rtlsdr_read_async call (spec §4.2).
func (d *rtlDevice) ReadAsync(blockSize int, cb func(iq []byte)) error {
	rtlCallbacksMu.Lock()
	key := rtlNextKey
	rtlNextKey++
	rtlCallbacks[key] = cb
	rtlCallbacksMu.Unlock()

	defer func() {
		rtlCallbacksMu.Lock()
		delete(rtlCallbacks, key)
		rtlCallbacksMu.Unlock()
	}()

	rv := C.rtlsdr_read_async(
		d.handle,
		(C.rtlsdr_read_async_cb_t)(C.goRtlsdrCallback),
		unsafe.Pointer(key),
		0,
		C.uint32_t(blockSize),
	)
	if rv != 0 {
		return fmt.Errorf("rtlsdr: read async: rc=%d", int(rv))
	}
	return nil
}
