package hdf5

/*
#cgo LDFLAGS: -lhdf5
#include <stdint.h>
#include <hdf5.h>

static herr_t read_doubles(hid_t ds, double *buf) {
	return H5Dread(ds, H5T_NATIVE_DOUBLE, H5S_ALL, H5S_ALL, H5P_DEFAULT, buf);
}

static herr_t read_int64s(hid_t ds, int64_t *buf) {
	return H5Dread(ds, H5T_NATIVE_INT64, H5S_ALL, H5S_ALL, H5P_DEFAULT, buf);
}

// The file type of a variable-length string dataset doubles as its memory
// type: each element comes back as a malloc'd char pointer.
static herr_t read_vstrings(hid_t ds, char **buf) {
	hid_t t = H5Dget_type(ds);
	if (t < 0) {
		return -1;
	}
	herr_t rc = H5Dread(ds, t, H5S_ALL, H5S_ALL, H5P_DEFAULT, buf);
	H5Tclose(t);
	return rc;
}

static herr_t reclaim_vstrings(hid_t ds, char **buf) {
	hid_t t = H5Dget_type(ds);
	if (t < 0) {
		return -1;
	}
	hid_t sp = H5Dget_space(ds);
	if (sp < 0) {
		H5Tclose(t);
		return -1;
	}
	herr_t rc = H5Dvlen_reclaim(t, sp, H5P_DEFAULT, buf);
	H5Sclose(sp);
	H5Tclose(t);
	return rc;
}
*/
import "C"

import (
	"fmt"
	"unsafe"

	"gonum.org/v1/hdf5"
)

func readFloats(ds *hdf5.Dataset, count int) ([]float64, error) {
	out := make([]float64, count)
	if count == 0 {
		return out, nil
	}
	if rc := C.read_doubles(C.hid_t(ds.ID()), (*C.double)(unsafe.Pointer(&out[0]))); rc < 0 {
		return nil, fmt.Errorf("failed to read: float conversion error %d", int(rc))
	}
	return out, nil
}

func readInts(ds *hdf5.Dataset, count int) ([]int64, error) {
	out := make([]int64, count)
	if count == 0 {
		return out, nil
	}
	if rc := C.read_int64s(C.hid_t(ds.ID()), (*C.int64_t)(unsafe.Pointer(&out[0]))); rc < 0 {
		return nil, fmt.Errorf("failed to read: integer conversion error %d", int(rc))
	}
	return out, nil
}

// readVarStrings copies variable-length strings into Go memory and hands the
// library's buffers back. Unset elements read as "".
func readVarStrings(ds *hdf5.Dataset, count int) ([]string, error) {
	out := make([]string, count)
	if count == 0 {
		return out, nil
	}
	id := C.hid_t(ds.ID())
	ptrs := make([]*C.char, count)
	if rc := C.read_vstrings(id, &ptrs[0]); rc < 0 {
		return nil, fmt.Errorf("failed to read: variable-length string error %d", int(rc))
	}
	for i, p := range ptrs {
		out[i] = C.GoString(p)
	}
	if rc := C.reclaim_vstrings(id, &ptrs[0]); rc < 0 {
		return nil, fmt.Errorf("failed to release variable-length strings: error %d", int(rc))
	}
	return out, nil
}
