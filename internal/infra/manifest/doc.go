// Package manifest loads the device manifests that declare which HAL
// interfaces a device provides, at which versions, under which instance
// names and over which transport.
//
// A manifest file is YAML:
//
//	hals:
//	  - name: android.hardware.camera.provider
//	    transport: hwbinder
//	    versions: ["2.4"]
//	    interfaces:
//	      - name: ICameraProvider
//	        instances: [legacy/0, external/0]
//
// A HAL declared at M.n serves requests for M.m whenever n >= m.
package manifest
