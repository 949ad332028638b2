package scraper

// shadowIframeSrcJS reads the src of the iframe inside the host element's
// shadow root, or null when the host, its shadow root or the iframe is
// missing.
const shadowIframeSrcJS = `(hostSel, iframeSel) => {
	const host = document.querySelector(hostSel);
	if (!host || !host.shadowRoot) {
		return null;
	}
	const iframe = host.shadowRoot.querySelector(iframeSel);
	return iframe ? iframe.src : null;
}`

// iframeSrcJS reads the src of the first iframe matching sel, or null.
const iframeSrcJS = `(sel) => {
	const iframe = document.querySelector(sel);
	return iframe ? iframe.src : null;
}`

// keyInfoJS locates the key information block: the dedicated section when
// present, otherwise the first block whose heading contains the heading
// text. It returns {found, content, textContent} or {found: false, error}.
const keyInfoJS = `(sectionSel, blockSel, labelSel, heading, valueSel) => {
	const pick = (div) => ({
		found: true,
		content: div.innerHTML,
		textContent: div.innerText,
	});

	const section = document.querySelector(sectionSel);
	if (!section) {
		for (const block of document.querySelectorAll(blockSel)) {
			const label = block.querySelector(labelSel);
			if (label && label.innerText.includes(heading)) {
				const div = block.querySelector(valueSel);
				if (div) {
					return pick(div);
				}
			}
		}
		return { found: false, error: 'key information section not found' };
	}

	const div = section.querySelector(valueSel);
	if (!div) {
		return { found: false, error: 'content container not found in key information section' };
	}
	return pick(div);
}`
