package browser

import (
	"encoding/json"
	"fmt"
)

// webglExtensions is the extension list a real Chrome on Apple silicon
// reports. Sites fingerprint against it, so the spoofed getExtension must
// acknowledge every entry.
var webglExtensions = []string{
	"ANGLE_instanced_arrays",
	"EXT_blend_minmax",
	"EXT_color_buffer_half_float",
	"EXT_disjoint_timer_query",
	"EXT_float_blend",
	"EXT_frag_depth",
	"EXT_shader_texture_lod",
	"EXT_texture_compression_bptc",
	"EXT_texture_compression_rgtc",
	"EXT_texture_filter_anisotropic",
	"EXT_sRGB",
	"KHR_parallel_shader_compile",
	"OES_element_index_uint",
	"OES_fbo_render_mipmap",
	"OES_standard_derivatives",
	"OES_texture_float",
	"OES_texture_float_linear",
	"OES_texture_half_float",
	"OES_texture_half_float_linear",
	"OES_vertex_array_object",
	"WEBGL_color_buffer_float",
	"WEBGL_compressed_texture_s3tc",
	"WEBGL_compressed_texture_s3tc_srgb",
	"WEBGL_debug_renderer_info",
	"WEBGL_debug_shaders",
	"WEBGL_depth_texture",
	"WEBGL_draw_buffers",
	"WEBGL_lose_context",
	"WEBGL_multi_draw",
}

const stealthTemplate = `(() => {
	const configs = %s;

	const generateRandomId = () => {
		const hex = '0123456789abcdef';
		let id = '';
		for (let i = 0; i < 32; i++) {
			id += hex[Math.floor(Math.random() * 16)];
			if ([8, 12, 16, 20].includes(i)) id += '-';
		}
		return id;
	};

	Object.defineProperties(navigator, {
		webdriver: { get: () => undefined },
		languages: { get: () => configs.languages },
		hardwareConcurrency: { get: () => configs.hardware_concurrency },
		deviceMemory: { get: () => configs.device_memory },
		platform: { get: () => configs.platform },
		vendor: { get: () => configs.vendor },
		plugins: { get: () => configs.extensions.map(ext => ({
			description: "Chrome Extension",
			filename: ext.filename,
			name: ext.name
		}))},
		connection: { get: () => ({
			effectiveType: '4g',
			rtt: 50,
			downlink: 10,
			saveData: false
		})}
	});

	window.devToolsOpened = false;
	const devTools = {
		get isOpen() {
			return window.devToolsOpened;
		}
	};
	Object.defineProperty(window, 'devtools', { get: () => devTools });

	window.chrome = {
		runtime: {
			id: generateRandomId(),
			getManifest: () => ({ manifest_version: 3 }),
			connect: () => ({
				onMessage: { addListener: () => {} },
				postMessage: () => {}
			})
		},
		app: { isInstalled: false },
		csi: () => ({ startE: Date.now(), onloadT: Date.now() + 100 }),
		loadTimes: () => ({
			firstPaintTime: Date.now(),
			firstPaintAfterLoadTime: Date.now() + 100,
			wasNpnNegotiated: true,
			wasAlternateProtocolAvailable: true,
			connectionInfo: "h2"
		})
	};

	const getParameter = WebGLRenderingContext.prototype.getParameter;
	WebGLRenderingContext.prototype.getParameter = function(parameter) {
		if (parameter === 37445) {
			return configs.gpu;
		}
		if (parameter === 37446) {
			return configs.vendor;
		}
		return getParameter.apply(this, arguments);
	};

	const getExtension = WebGLRenderingContext.prototype.getExtension;
	WebGLRenderingContext.prototype.getExtension = function(extension) {
		if (configs.webgl_extensions.includes(extension)) {
			return {};
		}
		return getExtension.apply(this, arguments);
	};
})();`

// stealthScript renders the page-injection script for the persona. The
// script runs before any site code on every new document.
func stealthScript(p Persona) (string, error) {
	configs := map[string]any{
		"platform":             p.Platform,
		"vendor":               p.Vendor,
		"gpu":                  p.GPU,
		"languages":            p.Languages,
		"extensions":           p.Extensions,
		"hardware_concurrency": p.HardwareConcurrency,
		"device_memory":        p.DeviceMemory,
		"webgl_extensions":     webglExtensions,
	}
	encoded, err := json.Marshal(configs)
	if err != nil {
		return "", fmt.Errorf("browser: encode stealth config: %w", err)
	}
	return fmt.Sprintf(stealthTemplate, encoded), nil
}
